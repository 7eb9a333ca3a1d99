// Command hamrag-api serves the knowledge base over HTTP: query answering,
// document upload, statistics, health and prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hamrag/pkg/config"
	hrerrors "hamrag/pkg/errors"
	"hamrag/pkg/logging"
	"hamrag/pkg/monitoring"
	"hamrag/pkg/rag"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "hamrag-api",
	})

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	service, err := rag.BootstrapService(cfg, metrics)
	if err != nil {
		logger.Error("failed to initialize service", "error", err)
		os.Exit(1)
	}

	api := &apiServer{service: service, logger: logger.With("component", "api")}

	router := mux.NewRouter()
	router.HandleFunc("/query", api.handleQuery).Methods(http.MethodPost)
	router.HandleFunc("/documents/upload", api.handleUpload).Methods(http.MethodPost)
	router.HandleFunc("/documents/url", api.handleAddURL).Methods(http.MethodPost)
	router.HandleFunc("/documents", api.handleClear).Methods(http.MethodDelete)
	router.HandleFunc("/similar/{query}", api.handleSimilar).Methods(http.MethodGet)
	router.HandleFunc("/stats", api.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/health", api.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/backends", api.handleBackends).Methods(http.MethodGet)
	router.HandleFunc("/backends/reset", api.handleReset).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation can be slow on local models
	}

	go func() {
		logger.Info("starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

type apiServer struct {
	service *rag.Service
	logger  *slog.Logger
}

type queryRequest struct {
	Question string `json:"question"`
}

type uploadResponse struct {
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
	Chunks   int    `json:"chunks"`
}

func (a *apiServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty question")
		return
	}

	result, err := a.service.Query(r.Context(), req.Question)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleUpload ingests a multipart file upload. The file lands in a temp
// path carrying its original extension so the processor routes it right.
func (a *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "hamrag-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to buffer upload")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, "failed to buffer upload")
		return
	}
	tmp.Close()

	n, err := a.service.IngestFile(r.Context(), tmp.Name())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Filename: header.Filename, Chunks: n})
}

func (a *apiServer) handleAddURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty url")
		return
	}

	n, err := a.service.IngestURL(r.Context(), req.URL)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{URL: req.URL, Chunks: n})
}

func (a *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteAll(r.Context()); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (a *apiServer) handleSimilar(w http.ResponseWriter, r *http.Request) {
	query := mux.Vars(r)["query"]
	hits, err := a.service.Similar(r.Context(), query, 5)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	type similarDoc struct {
		Content    string `json:"content"`
		Source     string `json:"source"`
		Title      string `json:"title"`
		ChunkIndex int    `json:"chunk_index"`
	}
	docs := make([]similarDoc, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, similarDoc{
			Content:    hit.Record.Content,
			Source:     hit.Record.Source,
			Title:      hit.Record.Title,
			ChunkIndex: hit.Record.ChunkIndex,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"query": query, "documents": docs})
}

func (a *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.Stats(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := a.service.CheckHealth(r.Context())
	status := http.StatusOK
	if !h.PipelineReady {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (a *apiServer) handleBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Backends(r.Context()))
}

func (a *apiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	a.service.ResetRouter()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (a *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	a.logger.Error("request failed", "error", err)
	switch {
	case hrerrors.IsIndexUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "vector index unavailable")
	case hrerrors.IsBackendUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "language model backends unavailable")
	case hrerrors.IsExtraction(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
