package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appai "github.com/bryanwahyu/vulngate/internal/application/ai"
	appscans "github.com/bryanwahyu/vulngate/internal/application/scans"
	domai "github.com/bryanwahyu/vulngate/internal/domain/ai"
	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	domain "github.com/bryanwahyu/vulngate/internal/domain/scans"
	"github.com/bryanwahyu/vulngate/internal/middleware"
)

const maxBodyBytes = 32 << 20

// Options configures the router. Zero values disable the optional parts.
type Options struct {
	APIKeys          map[string]string
	AllowedOrigins   []string
	RateLimiter      *middleware.RateLimiter
	Health           map[string]middleware.HealthChecker
	Ready            map[string]middleware.HealthChecker
	Metrics          *middleware.Metrics
	Log              logrus.FieldLogger
	DefaultScanners  []domain.Scanner
	DefaultPolicy    gate.Policy
	ProceedIfMissing bool
	ScanTimeout      time.Duration
}

type Router struct {
	http.Handler

	scansSvc *appscans.Service
	aiSvc    *appai.Service
	opts     Options
	jobs     sync.WaitGroup
}

func NewRouter(scansSvc *appscans.Service, aiSvc *appai.Service, opts Options) *Router {
	if opts.Metrics == nil {
		opts.Metrics = middleware.NewMetrics()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if len(opts.DefaultScanners) == 0 {
		opts.DefaultScanners = []domain.Scanner{domain.ScannerGrype}
	}
	if opts.DefaultPolicy == "" {
		opts.DefaultPolicy = gate.PolicyHigh
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 30 * time.Minute
	}
	r := &Router{scansSvc: scansSvc, aiSvc: aiSvc, opts: opts}

	mux := chi.NewRouter()
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	mux.Use(middleware.Logging(opts.Log))
	mux.Use(opts.Metrics.Middleware)
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateLimiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Ready))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)
		rt.Post("/gate", r.wrap(r.handleGate))
		rt.Post("/scans", r.wrap(r.handleTriggerScan))
		rt.Get("/scans/{job}/errors", r.wrap(r.handleJobErrors))
		rt.Get("/evaluations", r.wrap(r.handlePaginate))
		rt.Get("/evaluations/latest", r.wrap(r.handleLatest))
		rt.Get("/evaluations/{id}", r.wrap(r.handleGet))
		rt.Get("/evaluations/{id}/advice", r.wrap(r.handleLatestAdvice))
		rt.Get("/summary", r.wrap(r.handleSummary))
		rt.Post("/ai/advise", r.wrap(r.handleAdvise))
		rt.Get("/ai/advise", r.wrap(r.handleAdviceList))
	})

	r.Handler = mux
	return r
}

// Wait blocks until background scans have finished.
func (r *Router) Wait() { r.jobs.Wait() }

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			r.opts.Log.WithError(err).WithField("path", req.URL.Path).Error("request failed")
		}
		http.Error(w, err.Error(), code)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, middleware.ErrInvalidInput),
		errors.Is(err, gate.ErrInvalidPolicy),
		errors.Is(err, domain.ErrUnknownScanner),
		errors.Is(err, domain.ErrUnknownFormat),
		errors.Is(err, domain.ErrMalformedScanOutput):
		return http.StatusBadRequest
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, domain.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, appscans.ErrNoRepository), errors.Is(err, appai.ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, domain.ErrScannerUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", middleware.ErrInvalidInput, err)
	}
	return nil
}

func (r *Router) policyOrDefault(p string) string {
	if p == "" {
		return string(r.opts.DefaultPolicy)
	}
	return p
}

// POST /v1/{tenant}/gate
// Body: {"image": "...", "policy": "high", "outputs": [{"scanner": "grype", "format": "json", "data": {...}}]}
// 200 on pass, 422 on fail; the body is the same.
func (r *Router) handleGate(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	var body struct {
		Image   string `json:"image"`
		Policy  string `json:"policy"`
		Outputs []struct {
			Scanner string          `json:"scanner"`
			Format  string          `json:"format"`
			Data    json.RawMessage `json:"data"`
		} `json:"outputs"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateImageName(body.Image); err != nil {
		return err
	}

	cmd := appscans.EvaluateCommand{TenantID: tenant, Image: body.Image, Policy: r.policyOrDefault(body.Policy)}
	for _, o := range body.Outputs {
		sc, err := domain.ParseScanner(o.Scanner)
		if err != nil {
			return err
		}
		cmd.Outputs = append(cmd.Outputs, appscans.RawOutput{Scanner: sc, Format: domain.Format(o.Format), Data: o.Data})
	}

	res, err := r.scansSvc.Evaluate(req.Context(), cmd)
	if err != nil {
		return err
	}
	r.opts.Metrics.RecordGate(res.Decision.Outcome, res.Evaluation.Degraded)

	code := http.StatusOK
	if res.Decision.Failed() {
		code = http.StatusUnprocessableEntity
	}
	return writeJSON(w, code, res)
}

// POST /v1/{tenant}/scans
// Body: {"image": "...", "scanners": ["grype","trivy"], "policy": "high", "proceed_if_missing": false}
func (r *Router) handleTriggerScan(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	var body struct {
		Image            string   `json:"image"`
		Scanners         []string `json:"scanners"`
		Policy           string   `json:"policy"`
		ProceedIfMissing *bool    `json:"proceed_if_missing"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateImageName(body.Image); err != nil {
		return err
	}
	policy := r.policyOrDefault(body.Policy)
	if err := middleware.ValidatePolicy(policy); err != nil {
		return err
	}
	scanners := r.opts.DefaultScanners
	if len(body.Scanners) > 0 {
		var err error
		if scanners, err = middleware.ValidateScanners(body.Scanners); err != nil {
			return err
		}
	}
	proceed := r.opts.ProceedIfMissing
	if body.ProceedIfMissing != nil {
		proceed = *body.ProceedIfMissing
	}

	cmd := appscans.ScanCommand{
		TenantID:         tenant,
		Image:            body.Image,
		Scanners:         scanners,
		Policy:           policy,
		ProceedIfMissing: proceed,
	}
	job := uuid.New().String()

	// jalan di background sampai selesai, response langsung balik
	r.opts.Metrics.ScanStarted()
	r.jobs.Add(1)
	go func() {
		defer r.jobs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.ScanTimeout)
		defer cancel()

		res, err := r.scansSvc.Scan(ctx, cmd)
		r.opts.Metrics.ScanFinished(err)
		if err != nil {
			if rerr := r.scansSvc.RecordFailure(ctx, job, cmd, err); rerr != nil {
				r.opts.Log.WithError(rerr).WithField("job", job).Error("recording scan failure")
			}
			return
		}
		r.opts.Metrics.RecordGate(res.Decision.Outcome, res.Evaluation.Degraded)
	}()

	return writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "queued",
		"job_id":   job,
		"tenant":   tenant,
		"image":    body.Image,
		"scanners": scanners,
		"policy":   policy,
		"queuedAt": time.Now().UTC(),
	})
}

// GET /v1/{tenant}/scans/{job}/errors?limit=20
func (r *Router) handleJobErrors(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	job := chi.URLParam(req, "job")
	if err := middleware.ValidateID(job); err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.scansSvc.JobFailures(req.Context(), tenant, job, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/evaluations?page=&page_size=&image=&outcome=
func (r *Router) handlePaginate(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	f := gate.Filter{Image: middleware.SanitizeString(q.Get("image"))}
	switch o := gate.Outcome(q.Get("outcome")); o {
	case "", gate.OutcomePass, gate.OutcomeFail:
		f.Outcome = o
	default:
		return fmt.Errorf("%w: outcome must be pass or fail", middleware.ErrInvalidInput)
	}

	res, err := r.scansSvc.Paginate(req.Context(), tenant, page, size, f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/{tenant}/evaluations/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.scansSvc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/evaluations/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateID(id); err != nil {
		return err
	}

	e, err := r.scansSvc.Get(req.Context(), tenant, gate.EvaluationID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, e)
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.scansSvc.Summary(req.Context(), tenant, middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summary)
}

// POST /v1/{tenant}/ai/advise
// Body: {"evaluation_id": "<id>"}
func (r *Router) handleAdvise(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return appai.ErrNotConfigured
	}
	tenant := chi.URLParam(req, "tenant")
	var body struct {
		EvaluationID string `json:"evaluation_id"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateID(body.EvaluationID); err != nil {
		return err
	}

	a, err := r.aiSvc.Advise(req.Context(), tenant, gate.EvaluationID(body.EvaluationID))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// GET /v1/{tenant}/ai/advise?page=&page_size=
func (r *Router) handleAdviceList(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return appai.ErrNotConfigured
	}
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.aiSvc.List(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/evaluations/{id}/advice
func (r *Router) handleLatestAdvice(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return appai.ErrNotConfigured
	}
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateID(id); err != nil {
		return err
	}

	a, err := r.aiSvc.Latest(req.Context(), tenant, id)
	if err != nil {
		return err
	}
	if a == nil {
		return sql.ErrNoRows
	}
	return writeJSON(w, http.StatusOK, a)
}
