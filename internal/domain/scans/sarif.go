package scans

import (
	"fmt"
	"strings"
	"time"

	"github.com/owenrumney/go-sarif/v2/sarif"
)

// SARIFAdapter reads SARIF output of any scanner. Severity comes from the
// result's properties.severity, then the rule's, otherwise from the result level.
type SARIFAdapter struct {
	Source Scanner
}

func (a SARIFAdapter) Scanner() Scanner { return a.Source }
func (SARIFAdapter) Format() Format     { return FormatSARIF }

func (a SARIFAdapter) Parse(raw []byte, target string, at time.Time) (*ScanReport, error) {
	log, err := sarif.FromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedScanOutput, a.Source, err)
	}
	var findings []Finding
	for _, run := range log.Runs {
		if run == nil {
			continue
		}
		rules := ruleProperties(run)
		for _, r := range run.Results {
			if r == nil {
				continue
			}
			id := deref(r.RuleID)
			findings = append(findings, Finding{
				ID:       id,
				Severity: sarifSeverity(deref(r.Level), r.Properties, rules[id]),
				Source:   a.Source,
			})
		}
	}
	return NewScanReport(a.Source, target, at, findings), nil
}

func ruleProperties(run *sarif.Run) map[string]sarif.Properties {
	out := map[string]sarif.Properties{}
	if run.Tool.Driver == nil {
		return out
	}
	for _, rule := range run.Tool.Driver.Rules {
		if rule != nil {
			out[rule.ID] = rule.Properties
		}
	}
	return out
}

func sarifSeverity(level string, props ...sarif.Properties) Severity {
	for _, p := range props {
		for _, key := range []string{"severity", "Severity"} {
			if s, ok := p[key].(string); ok && s != "" {
				return NormalizeSeverity(s)
			}
		}
	}
	switch strings.ToLower(level) {
	case "error":
		return SeverityHigh
	case "warning":
		return SeverityMedium
	case "note":
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
