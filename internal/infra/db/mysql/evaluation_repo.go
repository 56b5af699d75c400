package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
)

const evaluationColumns = `id, tenant_id, image, scanners, policy,
       critical, high, medium, low, unknown,
       outcome, degraded, artifact_urls, duration_ms, created_at`

type EvaluationRepository struct {
	db *sql.DB
}

func NewEvaluationRepository(db *sql.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Save insert/update Evaluation record
func (r *EvaluationRepository) Save(ctx context.Context, e *gate.Evaluation) error {
	const q = `
INSERT INTO gate_evaluations
(id, tenant_id, image, scanners, policy,
 critical, high, medium, low, unknown,
 outcome, degraded, artifact_urls, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 outcome=VALUES(outcome), degraded=VALUES(degraded),
 critical=VALUES(critical), high=VALUES(high), medium=VALUES(medium), low=VALUES(low), unknown=VALUES(unknown),
 artifact_urls=VALUES(artifact_urls), duration_ms=VALUES(duration_ms);
`
	urls, err := encodeURLs(e.ArtifactURLs)
	if err != nil {
		return fmt.Errorf("encoding artifact urls: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q,
		e.ID, stringOrDash(e.TenantID), e.Image, stringOrDash(joinScanners(e.Scanners)), string(e.Policy),
		e.Tally.Critical, e.Tally.High, e.Tally.Medium, e.Tally.Low, e.Tally.Unknown,
		string(e.Outcome), e.Degraded, urls, e.DurationMS, created,
	)
	return err
}

// Get by ID + Tenant
func (r *EvaluationRepository) Get(ctx context.Context, tenant string, id gate.EvaluationID) (*gate.Evaluation, error) {
	q := `SELECT ` + evaluationColumns + `
FROM gate_evaluations
WHERE tenant_id=? AND id=? LIMIT 1;`
	return scanEvaluation(r.db.QueryRowContext(ctx, q, tenant, id))
}

// Latest evaluations per tenant
func (r *EvaluationRepository) Latest(ctx context.Context, tenant string, limit int) ([]*gate.Evaluation, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + evaluationColumns + `
FROM gate_evaluations
WHERE tenant_id=? ORDER BY created_at DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Summary counts evaluations since N days
func (r *EvaluationRepository) Summary(ctx context.Context, tenant string, sinceDays int) (gate.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().UTC().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS evaluations,
       COALESCE(SUM(outcome='fail'),0) AS failed,
       COALESCE(SUM(degraded),0)       AS degraded,
       COALESCE(SUM(critical),0)       AS critical,
       COALESCE(SUM(high),0)           AS high,
       COALESCE(SUM(medium),0)         AS medium,
       COALESCE(SUM(low),0)            AS low
FROM gate_evaluations
WHERE tenant_id=? AND created_at >= ?;
`
	var s gate.Summary
	err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(
		&s.Evaluations, &s.Failed, &s.Degraded, &s.Critical, &s.High, &s.Medium, &s.Low,
	)
	return s, err
}

// Paginate with offset + limit (classic pagination)
func (r *EvaluationRepository) Paginate(ctx context.Context, tenant string, page, pageSize int, f gate.Filter) (gate.Page, error) {
	page, pageSize = gate.Normalize(page, pageSize)
	where, args := filterClause(tenant, f)

	q := `SELECT ` + evaluationColumns + `
FROM gate_evaluations` + where + `
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return gate.Page{}, fmt.Errorf("querying evaluations: %w", err)
	}
	defer rows.Close()

	data, err := collect(rows)
	if err != nil {
		return gate.Page{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gate_evaluations`+where, args...).Scan(&total); err != nil {
		return gate.Page{}, fmt.Errorf("getting total count: %w", err)
	}

	return gate.Page{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: gate.TotalPages(total, pageSize),
	}, nil
}

func filterClause(tenant string, f gate.Filter) (string, []any) {
	where := "\nWHERE tenant_id=?"
	args := []any{tenant}
	if f.Image != "" {
		where += " AND image LIKE ?"
		args = append(args, "%"+escapeLikePattern(f.Image)+"%")
	}
	if f.Outcome != "" {
		where += " AND outcome=?"
		args = append(args, string(f.Outcome))
	}
	return where, args
}

func collect(rows *sql.Rows) ([]*gate.Evaluation, error) {
	var out []*gate.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvaluation(row rowScanner) (*gate.Evaluation, error) {
	var (
		e        gate.Evaluation
		scanners string
		urls     []byte
	)
	if err := row.Scan(
		&e.ID, &e.TenantID, &e.Image, &scanners, &e.Policy,
		&e.Tally.Critical, &e.Tally.High, &e.Tally.Medium, &e.Tally.Low, &e.Tally.Unknown,
		&e.Outcome, &e.Degraded, &urls, &e.DurationMS, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.Scanners = splitScanners(scanners)
	m, err := decodeURLs(urls)
	if err != nil {
		return nil, fmt.Errorf("decoding artifact urls: %w", err)
	}
	e.ArtifactURLs = m
	return &e, nil
}
