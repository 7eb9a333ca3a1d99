package llm

import (
	"context"
	"log/slog"
	"sync"

	hrerrors "hamrag/pkg/errors"
	"hamrag/pkg/monitoring"
)

// FailoverRouter fronts a primary backend with an optional fallback. Once
// the primary fails, the router goes degraded and routes every subsequent
// call to the fallback until Reset is called. The flag is sticky on purpose:
// a primary that just failed is not probed again on the caller's time.
// Without a fallback there is nowhere to route to, so the router never goes
// degraded and each call retries the primary.
type FailoverRouter struct {
	primary  Backend
	fallback Backend

	mu       sync.Mutex
	degraded bool

	metrics *monitoring.Metrics
	logger  *slog.Logger
}

// BackendStatus describes one backend in a health report.
type BackendStatus struct {
	Name    string `json:"name"`
	Role    string `json:"role"` // "primary" or "fallback"
	Healthy bool   `json:"healthy"`
	Active  bool   `json:"active"` // the backend the next call will hit
}

// NewFailoverRouter pairs a primary with an optional fallback. fallback may
// be nil; the router then surfaces primary failures directly.
func NewFailoverRouter(primary, fallback Backend, metrics *monitoring.Metrics) *FailoverRouter {
	return &FailoverRouter{
		primary:  primary,
		fallback: fallback,
		metrics:  metrics,
		logger:   slog.Default().With("component", "llm_router"),
	}
}

// Generate routes the prompt to the active backend. A primary failure
// escalates to the fallback exactly once within the call; a fallback
// failure is returned as-is. Non-backend errors never trigger failover.
func (r *FailoverRouter) Generate(ctx context.Context, prompt string) (string, error) {
	if r.isDegraded() {
		return r.fallback.Generate(ctx, prompt)
	}

	answer, err := r.primary.Generate(ctx, prompt)
	if err == nil {
		return answer, nil
	}
	if !hrerrors.IsBackendUnavailable(err) {
		return "", err
	}
	// With no fallback there is nothing to route around: surface the error
	// and let the next call try the primary again.
	if r.fallback == nil {
		return "", err
	}
	r.markDegraded()

	r.logger.Warn("primary backend failed, switching to fallback",
		"primary", r.primary.Name(),
		"fallback", r.fallback.Name(),
		"error", err,
	)
	if r.metrics != nil {
		r.metrics.BackendFailovers.Inc()
	}
	return r.fallback.Generate(ctx, prompt)
}

// Reset clears the degraded flag so the next call tries the primary again.
// Nothing else clears it.
func (r *FailoverRouter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.degraded {
		r.logger.Info("router reset, primary restored", "primary", r.primary.Name())
	}
	r.degraded = false
}

// Degraded reports whether calls are currently routed to the fallback.
func (r *FailoverRouter) Degraded() bool {
	return r.isDegraded()
}

// Active returns the backend the next Generate call will hit.
func (r *FailoverRouter) Active() Backend {
	if r.isDegraded() && r.fallback != nil {
		return r.fallback
	}
	return r.primary
}

// HealthCheck probes both backends and reports their status. Probing does
// not change routing; only Generate failures flip the degraded flag.
func (r *FailoverRouter) HealthCheck(ctx context.Context) []BackendStatus {
	degraded := r.isDegraded()
	statuses := []BackendStatus{{
		Name:    r.primary.Name(),
		Role:    "primary",
		Healthy: r.primary.IsHealthy(ctx),
		Active:  !degraded || r.fallback == nil,
	}}
	if r.fallback != nil {
		statuses = append(statuses, BackendStatus{
			Name:    r.fallback.Name(),
			Role:    "fallback",
			Healthy: r.fallback.IsHealthy(ctx),
			Active:  degraded,
		})
	}
	return statuses
}

func (r *FailoverRouter) isDegraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

func (r *FailoverRouter) markDegraded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = true
}
