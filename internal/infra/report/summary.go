package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

// Counts is the tally plus its totals as written to summary files.
type Counts struct {
	gate.SeverityTally
	Named int `json:"named_total"`
	Total int `json:"total"`
}

// Summary is the machine-readable result of one gate evaluation.
type Summary struct {
	Image       string                 `json:"image"`
	Scanners    []scans.Scanner        `json:"scanners"`
	Policy      gate.Policy            `json:"policy"`
	Counts      Counts                 `json:"counts"`
	Outcome     gate.Outcome           `json:"outcome"`
	Triggering  map[scans.Severity]int `json:"triggering_counts"`
	Degraded    bool                   `json:"degraded"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// NewSummary builds the summary for a tally and its decision.
func NewSummary(image string, scanners []scans.Scanner, t gate.SeverityTally, d gate.Decision, degraded bool, at time.Time) Summary {
	return Summary{
		Image:       image,
		Scanners:    scanners,
		Policy:      d.Policy,
		Counts:      Counts{SeverityTally: t, Named: t.Named(), Total: t.Total()},
		Outcome:     d.Outcome,
		Triggering:  d.Triggering,
		Degraded:    degraded,
		GeneratedAt: at.UTC(),
	}
}

// WriteJSON writes an indented JSON document.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
