package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthChecker is one backing dependency of the workspace server
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// DatabaseHealthChecker pings the operation journal database
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

// Dependency names a checker for /readyz. An optional one (dashboard
// snapshots) only degrades the report; a required one fails it.
type Dependency struct {
	Name     string
	Checker  HealthChecker
	Optional bool
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status    string `json:"status"`
	Optional  bool   `json:"optional,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

// Readiness runs every dependency concurrently, each bounded by perCheck
func Readiness(ctx context.Context, deps []Dependency, perCheck time.Duration) HealthStatus {
	out := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckStatus, len(deps)),
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, p := range deps {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, perCheck)
			defer cancel()
			start := time.Now()
			err := p.Checker.Check(cctx)

			st := CheckStatus{Status: StatusHealthy, Optional: p.Optional, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				st.Status = StatusUnhealthy
				st.Message = err.Error()
			}
			mu.Lock()
			out.Checks[p.Name] = st
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	for _, st := range out.Checks {
		switch {
		case st.Status == StatusHealthy:
		case st.Optional:
			if out.Status == StatusHealthy {
				out.Status = StatusDegraded
			}
		default:
			out.Status = StatusUnhealthy
		}
	}
	return out
}

// HealthHandler serves the readiness report; only a failed required dependency
// answers 503
func HealthHandler(deps []Dependency) http.HandlerFunc {
	deps = append([]Dependency(nil), deps...)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := Readiness(ctx, deps, 2*time.Second)
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(health)
	}
}

// LivenessHandler answers as long as the process serves HTTP
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
