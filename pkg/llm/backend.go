// Package llm provides the language-model backend abstraction: one
// implementation per supported provider, a factory keyed on configuration,
// and a failover router that pairs a primary backend with a fallback.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	hrerrors "hamrag/pkg/errors"
)

const userAgent = "hamrag/1.0"

// Backend generates answers from prompts. Implementations are stateless
// beyond their connection settings and safe for concurrent use.
type Backend interface {
	// Generate produces a completion for the prompt. Transport failures,
	// non-2xx statuses and undecodable payloads come back as typed errors
	// so the router can decide whether to fail over.
	Generate(ctx context.Context, prompt string) (string, error)

	// IsHealthy probes the backend with a cheap request. A false return
	// carries no detail on purpose: health checks are advisory.
	IsHealthy(ctx context.Context) bool

	// Name identifies the backend in logs, errors and health reports.
	Name() string
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// postJSON performs one JSON-in/JSON-out round trip and maps every failure
// mode onto the shared error taxonomy: transport errors and non-2xx become
// unavailability, undecodable bodies become malformed responses.
func postJSON(ctx context.Context, client *http.Client, backend, url string, headers map[string]string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return hrerrors.NewBackendUnavailableError(backend, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return hrerrors.NewBackendUnavailableError(backend, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return hrerrors.NewBackendUnavailableError(backend, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return hrerrors.NewBackendUnavailableError(backend, "failed to read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return hrerrors.NewBackendUnavailableError(backend,
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200)), nil)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return hrerrors.NewBackendMalformedError(backend, "failed to decode response", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
