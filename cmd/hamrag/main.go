// Command hamrag is the command-line front end: it ingests documentation
// into the knowledge base and answers questions against it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hamrag/pkg/config"
	"hamrag/pkg/logging"
	"hamrag/pkg/monitoring"
	"hamrag/pkg/rag"

	"github.com/prometheus/client_golang/prometheus"
)

const usage = `Usage: hamrag <command> [flags]

Commands:
  add <path>        ingest a PDF, image or directory
  add -url <url>    ingest a web page
  query <question>  answer one question
  interactive       interactive question loop
  stats             knowledge base statistics
  health            per-dependency health report
  backends          language-model backend status
  clear             delete every indexed document
  reset             restore the primary backend after failover
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	logging.NewLogger(logging.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "hamrag",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := rag.BootstrapService(cfg, monitoring.NewMetrics(prometheus.NewRegistry()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, service, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, service *rag.Service, command string, args []string) error {
	switch command {
	case "add":
		return runAdd(ctx, service, args)
	case "query":
		return runQuery(ctx, service, args)
	case "interactive":
		return runInteractive(ctx, service)
	case "stats":
		return runStats(ctx, service)
	case "health":
		return runHealth(ctx, service)
	case "backends":
		return runBackends(ctx, service)
	case "clear":
		return runClear(ctx, service)
	case "reset":
		service.ResetRouter()
		fmt.Println("router reset, primary backend restored")
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runAdd(ctx context.Context, service *rag.Service, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	url := fs.String("url", "", "web page to ingest instead of a local path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *url != "" {
		n, err := service.IngestURL(ctx, *url)
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d chunks from %s\n", n, *url)
		return nil
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("add needs a path or -url")
	}
	path := fs.Arg(0)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		result, err := service.IngestDirectory(ctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("added %d files (%d chunks), skipped %d, failed %d in %s\n",
			result.FilesAdded, result.Chunks, result.FilesSkipped, result.FilesFailed, result.Duration.Round(time.Millisecond))
		return nil
	}

	n, err := service.IngestFile(ctx, path)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Printf("no chunks indexed from %s (unsupported or empty)\n", path)
		return nil
	}
	fmt.Printf("indexed %d chunks from %s\n", n, path)
	return nil
}

func runQuery(ctx context.Context, service *rag.Service, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("query needs a question")
	}
	question := strings.Join(args, " ")

	result, err := service.Query(ctx, question)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func runInteractive(ctx context.Context, service *rag.Service) error {
	fmt.Println("hamrag interactive mode. Type a question, or \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "reset":
			service.ResetRouter()
			fmt.Println("router reset")
			continue
		}

		result, err := service.Query(ctx, question)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(result)
	}
}

func runStats(ctx context.Context, service *rag.Service) error {
	stats, err := service.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("class:     %s\n", stats.Class)
	fmt.Printf("documents: %d\n", stats.Documents)
	fmt.Printf("sources:   %d\n", stats.DistinctSources)
	for sourceType, n := range stats.BySourceType {
		fmt.Printf("  %-6s %d\n", sourceType, n)
	}
	return nil
}

func runHealth(ctx context.Context, service *rag.Service) error {
	h := service.CheckHealth(ctx)
	printCheck("embeddings", h.Embeddings)
	printCheck("index", h.Index)
	printCheck("backend", h.Backend)
	printCheck("pipeline ready", h.PipelineReady)
	if !h.PipelineReady {
		os.Exit(1)
	}
	return nil
}

func runBackends(ctx context.Context, service *rag.Service) error {
	for _, status := range service.Backends(ctx) {
		marker := " "
		if status.Active {
			marker = "*"
		}
		state := "healthy"
		if !status.Healthy {
			state = "unhealthy"
		}
		fmt.Printf("%s %-10s %-8s %s\n", marker, status.Name, status.Role, state)
	}
	return nil
}

func runClear(ctx context.Context, service *rag.Service) error {
	fmt.Print("delete every indexed document? [y/N] ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() || strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
		fmt.Println("aborted")
		return nil
	}
	if err := service.DeleteAll(ctx); err != nil {
		return err
	}
	fmt.Println("knowledge base cleared")
	return nil
}

func printResult(result *rag.QueryResult) {
	fmt.Println(result.Answer)
	if result.Degraded {
		fmt.Println("\n(answered by the fallback backend)")
	}
	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range result.Sources {
			fmt.Printf("  - %s (%s, chunk %d)\n", src.Title, src.Source, src.ChunkIndex)
		}
	}
}

func printCheck(name string, ok bool) {
	state := "FAIL"
	if ok {
		state = "ok"
	}
	fmt.Printf("%-15s %s\n", name, state)
}
