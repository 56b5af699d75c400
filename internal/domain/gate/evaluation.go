package gate

import (
	"time"

	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

// EvaluationID tipe untuk Evaluation
type EvaluationID string

// Evaluation is the persisted record of one gate run over an image.
type Evaluation struct {
	ID           EvaluationID      `json:"id"`
	TenantID     string            `json:"tenant_id"`
	Image        string            `json:"image"`
	Scanners     []scans.Scanner   `json:"scanners"`
	Policy       Policy            `json:"policy"`
	Tally        SeverityTally     `json:"tally"`
	Outcome      Outcome           `json:"outcome"`
	Degraded     bool              `json:"degraded"`
	ArtifactURLs map[string]string `json:"artifact_urls,omitempty"`
	DurationMS   int64             `json:"duration_ms"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Summary is the aggregate over a tenant's recent evaluations.
type Summary struct {
	Evaluations int `json:"evaluations"`
	Failed      int `json:"failed"`
	Degraded    int `json:"degraded"`
	Critical    int `json:"critical"`
	High        int `json:"high"`
	Medium      int `json:"medium"`
	Low         int `json:"low"`
}
