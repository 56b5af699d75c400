package gate

import "github.com/bryanwahyu/vulngate/internal/domain/scans"

// SeverityTally counts findings per canonical severity.
type SeverityTally struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Unknown  int `json:"unknown"`
}

// Count returns the count for one severity.
func (t SeverityTally) Count(s scans.Severity) int {
	switch s {
	case scans.SeverityCritical:
		return t.Critical
	case scans.SeverityHigh:
		return t.High
	case scans.SeverityMedium:
		return t.Medium
	case scans.SeverityLow:
		return t.Low
	default:
		return t.Unknown
	}
}

// Named is Critical+High+Medium+Low, the part of the tally gating looks at.
func (t SeverityTally) Named() int {
	return t.Critical + t.High + t.Medium + t.Low
}

// Total includes Unknown findings.
func (t SeverityTally) Total() int {
	return t.Named() + t.Unknown
}

// Add merges two tallies.
func (t SeverityTally) Add(o SeverityTally) SeverityTally {
	return SeverityTally{
		Critical: t.Critical + o.Critical,
		High:     t.High + o.High,
		Medium:   t.Medium + o.Medium,
		Low:      t.Low + o.Low,
		Unknown:  t.Unknown + o.Unknown,
	}
}

func (t *SeverityTally) inc(s scans.Severity) {
	switch s {
	case scans.SeverityCritical:
		t.Critical++
	case scans.SeverityHigh:
		t.High++
	case scans.SeverityMedium:
		t.Medium++
	case scans.SeverityLow:
		t.Low++
	default:
		t.Unknown++
	}
}

// Tally counts the findings of a single report.
func Tally(r *scans.ScanReport) SeverityTally {
	var t SeverityTally
	if r == nil {
		return t
	}
	for _, f := range r.Findings() {
		t.inc(f.Severity)
	}
	return t
}

// Aggregate tallies findings across reports from any number of scanners.
// Input order does not matter; no reports yields an all-zero tally.
func Aggregate(reports ...*scans.ScanReport) SeverityTally {
	var t SeverityTally
	for _, r := range reports {
		t = t.Add(Tally(r))
	}
	return t
}
