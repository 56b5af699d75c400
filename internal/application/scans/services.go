package scans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/vulngate/internal/application"
	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/vulngate/internal/domain/scans"
	"github.com/bryanwahyu/vulngate/internal/infra/report"
)

// ErrNoRepository is returned by read use-cases when persistence is not configured.
var ErrNoRepository = errors.New("evaluation history is not configured")

// ReportWriter writes report artifacts to disk.
type ReportWriter interface {
	WriteScan(image string, at time.Time, rep *domain.ScanReport, raw []byte) ([]report.Artifact, error)
	WriteSummary(image string, at time.Time, s report.Summary) (report.Artifact, error)
}

// RunError is a scanner invocation that failed before producing output.
type RunError struct {
	Scanner domain.Scanner
	Err     error
}

func (e *RunError) Error() string { return fmt.Sprintf("%s: %v", e.Scanner, e.Err) }
func (e *RunError) Unwrap() error { return e.Err }

// Service implements the scan and gate use-cases.
// Writer, Artifacts, Repo and Failures are optional; nil skips that step.
// Service is safe for concurrent use.
type Service struct {
	Runner      domain.Runner
	Inspector   domain.ImageInspector
	Writer      ReportWriter
	Artifacts   domain.ArtifactStore
	Repo        gate.Repository
	Failures    scanerrors.Repository
	Clock       application.Clock
	Log         logrus.FieldLogger
	Concurrency int
}

//
// ==== USE CASES ====
//

// ScanCommand runs scanners against an image and gates the result.
// ProceedIfMissing replaces the interactive "continue anyway?" prompt.
type ScanCommand struct {
	TenantID         string
	Image            string
	Scanners         []domain.Scanner
	Policy           string
	Format           domain.Format
	ProceedIfMissing bool
}

// RawOutput is scanner output produced elsewhere.
type RawOutput struct {
	Scanner domain.Scanner
	Format  domain.Format
	Data    []byte
}

// EvaluateCommand gates outputs that were already produced.
type EvaluateCommand struct {
	TenantID string
	Image    string
	Policy   string
	Outputs  []RawOutput
}

type Result struct {
	Evaluation *gate.Evaluation     `json:"evaluation"`
	Decision   gate.Decision        `json:"decision"`
	Summary    report.Summary       `json:"summary"`
	Reports    []*domain.ScanReport `json:"-"`
	Artifacts  []report.Artifact    `json:"-"`
}

// Scan runs every requested scanner, then ingests, reports, gates and records.
func (s *Service) Scan(ctx context.Context, cmd ScanCommand) (Result, error) {
	start := s.now()
	policy, err := gate.ParsePolicy(cmd.Policy)
	if err != nil {
		return Result{}, err
	}
	if len(cmd.Scanners) == 0 {
		return Result{}, fmt.Errorf("%w: no scanner selected", domain.ErrUnknownScanner)
	}
	log := s.log().WithFields(logrus.Fields{"tenant": cmd.TenantID, "image": cmd.Image})

	// scanner hilang = fatal, sebelum scan dimulai
	for _, sc := range cmd.Scanners {
		if err := s.Runner.Available(sc); err != nil {
			return Result{}, err
		}
	}

	if s.Inspector != nil {
		if err := s.Inspector.Exists(ctx, cmd.Image); err != nil {
			if !errors.Is(err, domain.ErrImageNotFound) || !cmd.ProceedIfMissing {
				return Result{}, err
			}
			log.WithError(err).Warn("image not found locally, proceeding as requested")
		}
	}

	outputs, err := s.runAll(ctx, cmd, log)
	if err != nil {
		return Result{}, err
	}
	return s.finish(ctx, cmd.TenantID, cmd.Image, policy, outputs, start)
}

// Evaluate gates scanner outputs without running any scanner.
func (s *Service) Evaluate(ctx context.Context, cmd EvaluateCommand) (Result, error) {
	start := s.now()
	policy, err := gate.ParsePolicy(cmd.Policy)
	if err != nil {
		return Result{}, err
	}
	if len(cmd.Outputs) == 0 {
		return Result{}, fmt.Errorf("%w: no scanner output supplied", domain.ErrMalformedScanOutput)
	}
	for _, o := range cmd.Outputs {
		if _, err := domain.AdapterFor(o.Scanner, o.Format); err != nil {
			return Result{}, err
		}
	}
	return s.finish(ctx, cmd.TenantID, cmd.Image, policy, cmd.Outputs, start)
}

// runAll fans scanners out on a bounded pool; outputs keep the command's scanner order.
func (s *Service) runAll(ctx context.Context, cmd ScanCommand, log logrus.FieldLogger) ([]RawOutput, error) {
	n := s.Concurrency
	if n <= 0 {
		n = 1
	}
	wp := workerpool.New(n)

	outputs := make([]RawOutput, len(cmd.Scanners))
	errs := make([]error, len(cmd.Scanners))
	var mu sync.Mutex

	for i, sc := range cmd.Scanners {
		i, sc := i, sc
		wp.Submit(func() {
			res, err := s.Runner.Run(ctx, domain.RunRequest{Scanner: sc, Image: cmd.Image, Format: cmd.Format})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[i] = &RunError{Scanner: sc, Err: err}
				return
			}
			log.WithFields(logrus.Fields{
				"scanner":     sc,
				"exit_code":   res.ExitCode,
				"duration_ms": res.DurationMS,
			}).Info("scanner finished")
			outputs[i] = RawOutput{Scanner: sc, Format: res.Format, Data: res.Raw}
		})
	}
	wp.StopWait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

func (s *Service) finish(ctx context.Context, tenant, image string, policy gate.Policy, outputs []RawOutput, start time.Time) (Result, error) {
	log := s.log().WithFields(logrus.Fields{"tenant": tenant, "image": image})
	at := s.now()

	var (
		reports   []*domain.ScanReport
		scanners  []domain.Scanner
		artifacts []report.Artifact
		degraded  bool
	)
	for _, o := range outputs {
		adapter, err := domain.AdapterFor(o.Scanner, o.Format)
		if err != nil {
			return Result{}, err
		}
		rep, perr := domain.Ingest(adapter, o.Data, image, at)
		if perr != nil {
			log.WithError(perr).WithField("scanner", o.Scanner).Warn("scanner output unreadable, counting it as zero findings")
			degraded = true
		}
		reports = append(reports, rep)
		scanners = append(scanners, o.Scanner)

		if s.Writer != nil {
			arts, err := s.Writer.WriteScan(image, at, rep, o.Data)
			if err != nil {
				return Result{}, err
			}
			artifacts = append(artifacts, arts...)
		}
	}

	tally := gate.Aggregate(reports...)
	decision := gate.Evaluate(tally, policy)
	summary := report.NewSummary(image, scanners, tally, decision, degraded, at)

	if s.Writer != nil {
		a, err := s.Writer.WriteSummary(image, at, summary)
		if err != nil {
			return Result{}, err
		}
		artifacts = append(artifacts, a)
	}

	urls, err := s.archive(ctx, tenant, artifacts)
	if err != nil {
		return Result{}, err
	}

	eval := &gate.Evaluation{
		ID:           gate.EvaluationID(uuid.New().String()),
		TenantID:     tenant,
		Image:        image,
		Scanners:     scanners,
		Policy:       policy,
		Tally:        tally,
		Outcome:      decision.Outcome,
		Degraded:     degraded,
		ArtifactURLs: urls,
		DurationMS:   s.now().Sub(start).Milliseconds(),
		CreatedAt:    at,
	}
	if s.Repo != nil {
		if err := s.Repo.Save(ctx, eval); err != nil {
			return Result{}, fmt.Errorf("save evaluation: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"evaluation": eval.ID,
		"policy":     policy,
		"outcome":    decision.Outcome,
		"critical":   tally.Critical,
		"high":       tally.High,
		"medium":     tally.Medium,
		"low":        tally.Low,
		"unknown":    tally.Unknown,
		"degraded":   degraded,
	}).Info("gate evaluated")

	return Result{
		Evaluation: eval,
		Decision:   decision,
		Summary:    summary,
		Reports:    reports,
		Artifacts:  artifacts,
	}, nil
}

// archive uploads artifacts under <tenant>/<name>; no store means no URLs.
func (s *Service) archive(ctx context.Context, tenant string, artifacts []report.Artifact) (map[string]string, error) {
	if s.Artifacts == nil || len(artifacts) == 0 {
		return nil, nil
	}
	if tenant == "" {
		tenant = "default"
	}
	urls := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		url, err := s.Artifacts.Upload(ctx, tenant+"/"+a.Name, a.Data)
		if err != nil {
			return nil, err
		}
		urls[a.Name] = url
	}
	return urls, nil
}

// Latest ambil N evaluasi terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*gate.Evaluation, error) {
	if s.Repo == nil {
		return nil, ErrNoRepository
	}
	return s.Repo.Latest(ctx, tenant, limit)
}

// Paginate evaluasi dengan filter image/outcome
func (s *Service) Paginate(ctx context.Context, tenant string, page, pageSize int, f gate.Filter) (gate.Page, error) {
	if s.Repo == nil {
		return gate.Page{}, ErrNoRepository
	}
	page, pageSize = gate.Normalize(page, pageSize)
	return s.Repo.Paginate(ctx, tenant, page, pageSize, f)
}

// Get ambil 1 evaluasi by id
func (s *Service) Get(ctx context.Context, tenant string, id gate.EvaluationID) (*gate.Evaluation, error) {
	if s.Repo == nil {
		return nil, ErrNoRepository
	}
	return s.Repo.Get(ctx, tenant, id)
}

// Summary rekap hasil evaluasi N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (gate.Summary, error) {
	if s.Repo == nil {
		return gate.Summary{}, ErrNoRepository
	}
	return s.Repo.Summary(ctx, tenant, sinceDays)
}

// PhaseOf classifies a Scan error for the failure log.
func PhaseOf(err error) scanerrors.Phase {
	var runErr *RunError
	switch {
	case errors.As(err, &runErr):
		return scanerrors.PhaseRun
	case errors.Is(err, gate.ErrInvalidPolicy),
		errors.Is(err, domain.ErrUnknownScanner),
		errors.Is(err, domain.ErrScannerUnavailable),
		errors.Is(err, domain.ErrImageNotFound):
		return scanerrors.PhasePreflight
	default:
		return scanerrors.PhaseReport
	}
}

// RecordFailure logs a failed background scan and stores it when a failure log is configured.
func (s *Service) RecordFailure(ctx context.Context, job string, cmd ScanCommand, cause error) error {
	phase := PhaseOf(cause)
	s.log().WithFields(logrus.Fields{
		"tenant": cmd.TenantID,
		"image":  cmd.Image,
		"job":    job,
		"phase":  phase,
	}).WithError(cause).Error("background scan failed")

	if s.Failures == nil {
		return nil
	}
	names := make([]string, 0, len(cmd.Scanners))
	for _, sc := range cmd.Scanners {
		names = append(names, string(sc))
	}
	details, err := json.Marshal(map[string]any{
		"policy":             cmd.Policy,
		"proceed_if_missing": cmd.ProceedIfMissing,
	})
	if err != nil {
		return err
	}
	return s.Failures.Save(ctx, &scanerrors.ScanError{
		TenantID:    cmd.TenantID,
		JobID:       job,
		Image:       cmd.Image,
		Scanners:    strings.Join(names, ","),
		Phase:       phase,
		Message:     cause.Error(),
		DetailsJSON: string(details),
		CreatedAt:   s.now(),
	})
}

// JobFailures lists recorded failures of one background job.
func (s *Service) JobFailures(ctx context.Context, tenant, job string, limit int) ([]*scanerrors.ScanError, error) {
	if s.Failures == nil {
		return nil, ErrNoRepository
	}
	return s.Failures.ListByJob(ctx, tenant, job, limit)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *Service) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
