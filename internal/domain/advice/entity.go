package advice

import "time"

// AdviceID identifier type
type AdviceID string

// Advice is remediation guidance generated for one gate evaluation.
type Advice struct {
	ID           AdviceID  `json:"id"`
	TenantID     string    `json:"tenant_id"`
	EvaluationID string    `json:"evaluation_id"`
	Image        string    `json:"image"`
	Result       string    `json:"result"` // JSON string from the advisor
	CreatedAt    time.Time `json:"created_at"`
}
