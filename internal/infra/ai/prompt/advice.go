package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior container security engineer. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Use lowercase severity values: critical, high, medium, low, unknown.
- counts must repeat the counts you were given; never invent findings.
- actions is an ordered list, most urgent first. Keep items concise.
- If the gate outcome is "fail", the first action must address the severities that failed the gate.

Schema (example with empty values):
{
  "image": "<string>",
  "outcome": "<pass|fail>",
  "counts": {"critical": 0, "high": 0, "medium": 0, "low": 0, "unknown": 0},
  "actions": [
    {
      "title": "<string>",
      "severity": "<critical|high|medium|low|unknown>",
      "recommendation": "<string>"
    }
  ],
  "advice": "<string>"
}`
}

// evaluationInput is the compact view of an evaluation sent to the model.
type evaluationInput struct {
	Image    string             `json:"image"`
	Scanners []string           `json:"scanners"`
	Policy   string             `json:"fail_on"`
	Outcome  string             `json:"outcome"`
	Degraded bool               `json:"degraded"`
	Counts   gate.SeverityTally `json:"counts"`
}

// GetUserPrompt builds a compact user message around an evaluation.
func GetUserPrompt(e *gate.Evaluation) (string, error) {
	in := evaluationInput{
		Image:    e.Image,
		Policy:   e.Policy.String(),
		Outcome:  string(e.Outcome),
		Degraded: e.Degraded,
		Counts:   e.Tally,
	}
	for _, s := range e.Scanners {
		in.Scanners = append(in.Scanners, string(s))
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to marshal evaluation: %w", err)
	}
	return fmt.Sprintf("Give remediation advice for this image scan gate result and respond with the JSON per schema. Result: %s", b), nil
}

// Action is one remediation step.
type Action struct {
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
}

// Suggestion matches the schema used by the system prompt.
type Suggestion struct {
	Image   string             `json:"image"`
	Outcome string             `json:"outcome"`
	Counts  gate.SeverityTally `json:"counts"`
	Actions []Action           `json:"actions"`
	Advice  string             `json:"advice"`
}
