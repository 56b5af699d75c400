package scanerrors

import "time"

// Phase of a background scan where the failure happened.
type Phase string

const (
	PhasePreflight Phase = "preflight" // policy, scanner or image checks
	PhaseRun       Phase = "run"
	PhaseReport    Phase = "report" // writing, archiving or saving results
)

// ScanError is a recorded failure of a background scan job.
type ScanError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	JobID       string    `json:"job_id"`
	Image       string    `json:"image"`
	Scanners    string    `json:"scanners,omitempty"`
	Phase       Phase     `json:"phase,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
