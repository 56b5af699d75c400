package scanerrors

import "context"

// Repository defines persistence for background scan failures
type Repository interface {
	Save(ctx context.Context, e *ScanError) error
	ListByJob(ctx context.Context, tenant string, jobID string, limit int) ([]*ScanError, error)
}
