package prompt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
)

// Offline answers with rule-based advice in the same schema as the model.
// Used when no OpenAI key is configured.
type Offline struct{}

func (Offline) Advise(_ context.Context, e *gate.Evaluation) (string, error) {
	out := Suggestion{
		Image:   e.Image,
		Outcome: string(e.Outcome),
		Counts:  e.Tally,
		Actions: make([]Action, 0, 4),
	}
	t := e.Tally

	if t.Critical > 0 {
		out.Actions = append(out.Actions, Action{
			Title:          fmt.Sprintf("%d critical vulnerabilities", t.Critical),
			Severity:       "critical",
			Recommendation: "Rebuild on a patched base image and bump the affected packages to their fixed versions before release.",
		})
	}
	if t.High > 0 {
		out.Actions = append(out.Actions, Action{
			Title:          fmt.Sprintf("%d high vulnerabilities", t.High),
			Severity:       "high",
			Recommendation: "Upgrade packages that have a fix available; track the rest with an expiry-dated exception.",
		})
	}
	if t.Medium+t.Low > 0 {
		out.Actions = append(out.Actions, Action{
			Title:          fmt.Sprintf("%d medium/low vulnerabilities", t.Medium+t.Low),
			Severity:       "medium",
			Recommendation: "Schedule upgrades in the regular dependency refresh; slim the image to drop unused packages.",
		})
	}
	if t.Unknown > 0 {
		out.Actions = append(out.Actions, Action{
			Title:          fmt.Sprintf("%d findings without a rated severity", t.Unknown),
			Severity:       "unknown",
			Recommendation: "Review these manually; they are not counted by the gate.",
		})
	}
	if e.Degraded {
		out.Actions = append(out.Actions, Action{
			Title:          "Scanner output could not be read",
			Severity:       "unknown",
			Recommendation: "Re-run the scan; at least one scanner produced unreadable output and was counted as zero findings.",
		})
	}

	switch {
	case e.Outcome == gate.OutcomeFail:
		out.Advice = fmt.Sprintf("The gate failed at fail-on=%s. Fix the listed critical and high items first, then re-scan.", e.Policy)
	case t.Named() > 0:
		out.Advice = "The gate passed, but known vulnerabilities remain. Keep base images current and re-scan regularly."
	default:
		out.Advice = "No rated vulnerabilities found. Keep base images current and re-scan regularly."
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to marshal suggestion: %w", err)
	}
	return string(b), nil
}
