package ai

import (
	"context"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
)

// Client produces remediation advice (a JSON document) for an evaluation.
type Client interface {
	Advise(ctx context.Context, e *gate.Evaluation) (string, error)
}
