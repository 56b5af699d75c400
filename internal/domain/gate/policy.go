package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

// ErrInvalidPolicy is returned for an unrecognised fail threshold.
var ErrInvalidPolicy = errors.New("invalid gate policy")

// Policy is the minimum severity that fails the gate.
type Policy string

const (
	PolicyCritical Policy = "critical"
	PolicyHigh     Policy = "high"
	PolicyMedium   Policy = "medium"
	PolicyLow      Policy = "low"
	PolicyNone     Policy = "none"
)

// Policies from strictest to loosest failure threshold.
var Policies = []Policy{PolicyCritical, PolicyHigh, PolicyMedium, PolicyLow, PolicyNone}

// ladder is the gated part of the severity order, most severe first.
var ladder = []scans.Severity{scans.SeverityCritical, scans.SeverityHigh, scans.SeverityMedium, scans.SeverityLow}

// ParsePolicy is case-insensitive and never falls back to a default.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Policies {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q (allowed: critical, high, medium, low, none)", ErrInvalidPolicy, s)
}

// rung returns the severity the policy names; ok is false for none.
func (p Policy) rung() (scans.Severity, bool) {
	switch p {
	case PolicyCritical:
		return scans.SeverityCritical, true
	case PolicyHigh:
		return scans.SeverityHigh, true
	case PolicyMedium:
		return scans.SeverityMedium, true
	case PolicyLow:
		return scans.SeverityLow, true
	default:
		return "", false
	}
}

// Gated returns the ladder rungs that fail under p, most severe first.
func (p Policy) Gated() []scans.Severity {
	r, ok := p.rung()
	if !ok {
		return nil
	}
	var out []scans.Severity
	for _, s := range ladder {
		out = append(out, s)
		if s == r {
			break
		}
	}
	return out
}

func (p Policy) String() string { return string(p) }
