package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/vulngate/internal/domain/advice"
	"github.com/bryanwahyu/vulngate/internal/domain/gate"
)

type AdviceRepository struct {
	db *sql.DB
}

func NewAdviceRepository(db *sql.DB) *AdviceRepository {
	return &AdviceRepository{db: db}
}

// Save inserts an advice record
func (r *AdviceRepository) Save(ctx context.Context, a *domain.Advice) error {
	const q = `
INSERT INTO gate_advice
  (id, tenant_id, evaluation_id, image, result_json, created_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  evaluation_id=VALUES(evaluation_id), image=VALUES(image), result_json=VALUES(result_json);
`
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), a.EvaluationID, stringOrDash(a.Image), jsonOrEmpty(a.Result), createdAt)
	return err
}

// Paginate returns a page of advice records ordered by created_at desc
func (r *AdviceRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Advice, error) {
	page, pageSize = gate.Normalize(page, pageSize)
	const q = `
SELECT id, tenant_id, evaluation_id, image, result_json, created_at
FROM gate_advice
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Advice
	for rows.Next() {
		a, err := scanAdvice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestByEvaluation returns the newest advice for an evaluation, nil when none exists
func (r *AdviceRepository) LatestByEvaluation(ctx context.Context, tenant string, evaluationID string) (*domain.Advice, error) {
	const q = `
SELECT id, tenant_id, evaluation_id, image, result_json, created_at
FROM gate_advice
WHERE tenant_id=? AND evaluation_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	a, err := scanAdvice(r.db.QueryRowContext(ctx, q, tenant, evaluationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func scanAdvice(row rowScanner) (*domain.Advice, error) {
	var a domain.Advice
	if err := row.Scan(&a.ID, &a.TenantID, &a.EvaluationID, &a.Image, &a.Result, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
