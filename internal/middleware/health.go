package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

// HealthChecker defines interface for health checking
type HealthChecker interface {
	Check(ctx context.Context) error
}

// DatabaseHealthChecker checks database health
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

// ScannerChecker fails while any of the default scanners cannot be launched.
type ScannerChecker struct {
	Runner   scans.Runner
	Scanners []scans.Scanner
}

func (s *ScannerChecker) Check(context.Context) error {
	var errs []error
	for _, sc := range s.Scanners {
		if err := s.Runner.Available(sc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckFunc adapts a ping function (object storage) to HealthChecker
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// HealthStatus is the body of /health and /ready.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// runChecks menjalankan semua checker paralel; ok false kalau ada yang gagal
func runChecks(ctx context.Context, checkers map[string]HealthChecker) (map[string]CheckStatus, bool) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]CheckStatus, len(checkers))
		ok  = true
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, c HealthChecker) {
			defer wg.Done()
			err := c.Check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ok = false
				out[name] = CheckStatus{Status: "unhealthy", Message: err.Error()}
				return
			}
			out[name] = CheckStatus{Status: "healthy"}
		}(name, checker)
	}
	wg.Wait()
	return out, ok
}

func statusHandler(checkers map[string]HealthChecker, good, bad string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks, ok := runChecks(ctx, checkers)
		body := HealthStatus{Status: good, Timestamp: time.Now().UTC(), Checks: checks}
		code := http.StatusOK
		if !ok {
			body.Status = bad
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// HealthHandler reports every dependency (database, object storage).
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return statusHandler(checkers, "healthy", "unhealthy")
}

// ReadinessHandler only looks at what a scan cannot run without, i.e. the scanners.
func ReadinessHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return statusHandler(checkers, "ready", "not_ready")
}

// LivenessHandler creates a liveness check handler (simplest check)
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
