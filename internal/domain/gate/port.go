package gate

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, e *Evaluation) error
	Get(ctx context.Context, tenant string, id EvaluationID) (*Evaluation, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Evaluation, error)
	Summary(ctx context.Context, tenant string, sinceDays int) (Summary, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int, f Filter) (Page, error)
}
