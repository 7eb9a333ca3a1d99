package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	hrerrors "hamrag/pkg/errors"
)

// userAgent announces the crawler on outbound requests.
const userAgent = "hamrag/1.0 (+https://github.com/hamrag)"

// WebExtractor fetches a page and extracts its visible text content. Every
// fetch carries a bounded timeout and a capped retry count, and outbound
// requests are rate limited.
type WebExtractor struct {
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewWebExtractor creates a web extractor. fetchesPerSecond bounds the
// outbound request rate across all fetches made through this extractor.
func NewWebExtractor(timeout time.Duration, maxRetries int, fetchesPerSecond float64) *WebExtractor {
	if fetchesPerSecond <= 0 {
		fetchesPerSecond = 1
	}
	return &WebExtractor{
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: 2 * time.Second,
		limiter:    rate.NewLimiter(rate.Limit(fetchesPerSecond), 1),
		logger:     slog.Default().With("component", "web-extractor"),
	}
}

// Extract fetches the URL and returns its visible text and title. Scripts,
// styles, navigation, headers and footers are removed before text
// extraction; whitespace is collapsed deterministically.
func (e *WebExtractor) Extract(ctx context.Context, url string) (text, title string, err error) {
	resp, err := e.fetch(ctx, url)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", hrerrors.NewExtractionError("extract_web", url, "cannot parse HTML", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Unknown"
	}

	doc.Find("script, style, nav, footer, header").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	return collapseWhitespace(body.Text()), title, nil
}

// fetch performs the rate-limited GET with bounded retries. Only transport
// errors and 5xx responses are retried; client errors are final.
func (e *WebExtractor) fetch(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Debug("retrying fetch", "url", url, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retryDelay):
			}
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, hrerrors.NewExtractionError("extract_web", url, "invalid URL", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, hrerrors.NewExtractionError("extract_web", url,
				fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
		}
		return resp, nil
	}
	return nil, hrerrors.NewExtractionError("extract_web", url,
		fmt.Sprintf("fetch failed after %d attempts", e.maxRetries+1), lastErr)
}

// collapseWhitespace flattens all runs of whitespace to single spaces.
// Deterministic: the same input always produces the same output, with no
// duplicate blank runs left behind.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
