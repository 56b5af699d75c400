package ai

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/vulngate/internal/application"
	"github.com/bryanwahyu/vulngate/internal/domain/advice"
	"github.com/bryanwahyu/vulngate/internal/domain/ai"
	"github.com/bryanwahyu/vulngate/internal/domain/gate"
)

// ErrNotConfigured is returned when advice needs persistence that is not set up.
var ErrNotConfigured = errors.New("advice history is not configured")

type Service struct {
	client ai.Client
	evals  gate.Repository
	repo   advice.Repository
	clock  application.Clock
}

// NewService; repo may be nil, advice is then returned but not stored.
func NewService(client ai.Client, evals gate.Repository, repo advice.Repository, clock application.Clock) *Service {
	return &Service{client: client, evals: evals, repo: repo, clock: clock}
}

// Advise loads a stored evaluation, asks the advisor and stores the answer.
func (s *Service) Advise(ctx context.Context, tenant string, id gate.EvaluationID) (*advice.Advice, error) {
	if s.evals == nil {
		return nil, ErrNotConfigured
	}
	e, err := s.evals.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	result, err := s.client.Advise(ctx, e)
	if err != nil {
		return nil, err
	}

	a := &advice.Advice{
		ID:           advice.AdviceID(uuid.New().String()),
		TenantID:     tenant,
		EvaluationID: string(e.ID),
		Image:        e.Image,
		Result:       result,
		CreatedAt:    s.now(),
	}
	if s.repo != nil {
		if err := s.repo.Save(ctx, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// List returns stored advice, newest first.
func (s *Service) List(ctx context.Context, tenant string, page, pageSize int) ([]*advice.Advice, error) {
	if s.repo == nil {
		return nil, ErrNotConfigured
	}
	return s.repo.Paginate(ctx, tenant, page, pageSize)
}

// Latest advice untuk satu evaluasi; nil kalau belum ada
func (s *Service) Latest(ctx context.Context, tenant string, evaluationID string) (*advice.Advice, error) {
	if s.repo == nil {
		return nil, ErrNotConfigured
	}
	return s.repo.LatestByEvaluation(ctx, tenant, evaluationID)
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
