package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetTenantFromContext(r.Context())))
})

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"acme": "k-acme", "beta": "k-beta"})(ok)

	tests := []struct {
		name   string
		path   string
		header string
		code   int
		body   string
	}{
		{"health skips auth", "/health", "", http.StatusOK, ""},
		{"missing header", "/v1/acme/summary", "", http.StatusUnauthorized, ""},
		{"bearer", "/v1/acme/summary", "Bearer k-acme", http.StatusOK, "acme"},
		{"raw key", "/v1/beta/summary", "k-beta", http.StatusOK, "beta"},
		{"wrong key", "/v1/acme/summary", "Bearer nope", http.StatusUnauthorized, ""},
		{"empty bearer", "/v1/acme/summary", "Bearer ", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAPIKeyAuthDisabledWithoutKeys(t *testing.T) {
	rec := httptest.NewRecorder()
	APIKeyAuth(nil)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/acme/summary", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireValidTenant(t *testing.T) {
	r := chi.NewRouter()
	r.Use(APIKeyAuth(map[string]string{"acme": "k-acme"}))
	r.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(RequireValidTenant)
		rt.Get("/summary", ok)
	})

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer k-acme")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, do("/v1/acme/summary"))
	assert.Equal(t, http.StatusForbidden, do("/v1/beta/summary"))
	assert.Equal(t, http.StatusBadRequest, do("/v1/ac%20me/summary"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys have separate buckets")

	now := time.Now()
	rl.now = func() time.Time { return now.Add(time.Hour) }
	assert.Equal(t, 2, rl.Cleanup(10*time.Minute))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(NewRateLimiter(0.5, 1))(ok)

	call := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, call("/v1/acme/summary").Code)
	rec := call("/v1/acme/summary")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, call("/health").Code)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	h := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/acme/gate", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "/v1/acme/gate", entry["path"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(2), entry["bytes"])
	assert.Equal(t, "10.0.0.1", entry["ip"])
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	codes := []int{http.StatusOK, http.StatusUnprocessableEntity, http.StatusInternalServerError}
	for _, code := range codes {
		code := code
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(code) }))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	m.RecordGate(gate.OutcomeFail, true)
	m.RecordGate(gate.OutcomePass, false)
	m.ScanStarted()
	m.ScanFinished(errors.New("boom"))
	m.ScanStarted()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("failure")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.RequestsInFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Gates.WithLabelValues("fail")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Gates.WithLabelValues("pass")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GatesDegraded))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Scans.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ScansRunning))
	assert.Equal(t, 3, testutil.CollectAndCount(m.RequestDuration))
}

func TestMetricsHandlerExposition(t *testing.T) {
	m := NewMetrics()
	m.RecordGate(gate.OutcomeFail, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `vulngate_gate_evaluations_total{outcome="fail"} 1`)
	assert.Contains(t, body, "# TYPE vulngate_scans_running gauge")
	assert.Contains(t, body, "go_goroutines")

	other := NewMetrics()
	assert.Equal(t, float64(0), testutil.ToFloat64(other.Gates.WithLabelValues("fail")))
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{
		"storage": CheckFunc(func(context.Context) error { return nil }),
	})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{
		"storage":  CheckFunc(func(context.Context) error { return nil }),
		"database": CheckFunc(func(context.Context) error { return errors.New("conn refused") }),
	})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var h HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "unhealthy", h.Status)
	assert.Equal(t, CheckStatus{Status: "unhealthy", Message: "conn refused"}, h.Checks["database"])
	assert.Equal(t, "healthy", h.Checks["storage"].Status)
}

type availability map[scans.Scanner]bool

func (a availability) Available(sc scans.Scanner) error {
	if !a[sc] {
		return fmt.Errorf("%w: %s", scans.ErrScannerUnavailable, sc)
	}
	return nil
}

func (availability) Run(context.Context, scans.RunRequest) (scans.RunResult, error) {
	return scans.RunResult{}, nil
}

func TestReadinessHandler(t *testing.T) {
	checker := &ScannerChecker{
		Runner:   availability{scans.ScannerGrype: true},
		Scanners: []scans.Scanner{scans.ScannerGrype},
	}
	rec := httptest.NewRecorder()
	ReadinessHandler(map[string]HealthChecker{"scanners": checker})(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.Scanners = append(checker.Scanners, scans.ScannerTrivy)
	rec = httptest.NewRecorder()
	ReadinessHandler(map[string]HealthChecker{"scanners": checker})(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var h HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "not_ready", h.Status)
	assert.Contains(t, h.Checks["scanners"].Message, "trivy")

	rec = httptest.NewRecorder()
	ReadinessHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateImageName(t *testing.T) {
	valid := []string{
		"nginx",
		"nginx:1.25",
		"quay.io/ansible/creator-ee:v0.22.0",
		"localhost:5000/team/app:latest",
		"alpine@sha256:" + strings.Repeat("a", 64),
	}
	for _, img := range valid {
		assert.NoError(t, ValidateImageName(img), img)
	}
	invalid := []string{"", "nginx;rm -rf /", "../etc/passwd", "nginx:$(id)", "bad image", "UPPER::"}
	for _, img := range invalid {
		assert.ErrorIs(t, ValidateImageName(img), ErrInvalidInput, img)
	}
}

func TestValidateScanners(t *testing.T) {
	got, err := ValidateScanners([]string{"Grype", "trivy", "grype"})
	require.NoError(t, err)
	assert.Equal(t, []scans.Scanner{scans.ScannerGrype, scans.ScannerTrivy}, got)

	_, err = ValidateScanners(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ValidateScanners([]string{"clair"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, scans.ErrUnknownScanner)
}

func TestValidatePolicyAndIDs(t *testing.T) {
	assert.NoError(t, ValidatePolicy("HIGH"))
	err := ValidatePolicy("severe")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, gate.ErrInvalidPolicy)

	assert.NoError(t, ValidateTenantID("acme_prod-1"))
	assert.ErrorIs(t, ValidateTenantID(""), ErrInvalidInput)
	assert.ErrorIs(t, ValidateTenantID("a/b"), ErrInvalidInput)

	assert.NoError(t, ValidateID("3f0c7f3e-8a53-4f0e-9d57-0a2b9c1d2e3f"))
	assert.ErrorIs(t, ValidateID("x"), ErrInvalidInput)

	assert.Equal(t, "ab", SanitizeString(" a\x00b\x07 "))
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(1000))
	assert.Equal(t, 7, ValidateDays(-1))
	assert.Equal(t, 365, ValidateDays(9999))
}
