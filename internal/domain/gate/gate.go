package gate

import "github.com/bryanwahyu/vulngate/internal/domain/scans"

// Outcome of a gate evaluation.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// Exit codes for CI integration.
const (
	ExitPass  = 0
	ExitFail  = 1
	ExitError = 2
)

// ExitCode maps an outcome to a process exit status.
func (o Outcome) ExitCode() int {
	if o == OutcomeFail {
		return ExitFail
	}
	return ExitPass
}

// Decision is the result of gating a tally against a policy.
// Triggering holds the nonzero counts at or above the threshold rung.
type Decision struct {
	Outcome    Outcome                `json:"outcome"`
	Policy     Policy                 `json:"policy"`
	Triggering map[scans.Severity]int `json:"triggering_counts"`
}

func (d Decision) Failed() bool { return d.Outcome == OutcomeFail }

// Evaluate fails when any rung at or above the policy threshold has findings.
// PolicyNone always passes. Unknown findings never count.
func Evaluate(t SeverityTally, p Policy) Decision {
	d := Decision{Outcome: OutcomePass, Policy: p, Triggering: map[scans.Severity]int{}}
	for _, s := range p.Gated() {
		if n := t.Count(s); n > 0 {
			d.Triggering[s] = n
			d.Outcome = OutcomeFail
		}
	}
	return d
}
