package advice

import "context"

// Repository port for persisting and querying advice
type Repository interface {
	Save(ctx context.Context, a *Advice) error
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*Advice, error)
	LatestByEvaluation(ctx context.Context, tenant string, evaluationID string) (*Advice, error)
}
