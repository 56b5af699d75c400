package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

var at = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func report(scanner scans.Scanner, sevs ...scans.Severity) *scans.ScanReport {
	var fs []scans.Finding
	for i, s := range sevs {
		fs = append(fs, scans.Finding{ID: string(rune('a' + i)), Severity: s, Source: scanner})
	}
	return scans.NewScanReport(scanner, "ee", at, fs)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Equal(t, SeverityTally{}, Aggregate())
	assert.Equal(t, SeverityTally{}, Aggregate(nil, report(scans.ScannerGrype)))
}

func TestAggregateCounts(t *testing.T) {
	a := report(scans.ScannerGrype, scans.SeverityCritical, scans.SeverityHigh, scans.SeverityHigh)
	b := report(scans.ScannerTrivy, scans.SeverityLow, scans.SeverityUnknown, scans.SeverityMedium)
	got := Aggregate(a, b)
	assert.Equal(t, SeverityTally{Critical: 1, High: 2, Medium: 1, Low: 1, Unknown: 1}, got)
	assert.Equal(t, 5, got.Named())
	assert.Equal(t, 6, got.Total())
	assert.Equal(t, 2, got.Count(scans.SeverityHigh))
	assert.Equal(t, 1, got.Count(scans.SeverityUnknown))
}

func TestAggregateCommutativeAssociative(t *testing.T) {
	a := report(scans.ScannerGrype, scans.SeverityCritical, scans.SeverityLow)
	b := report(scans.ScannerTrivy, scans.SeverityHigh, scans.SeverityHigh, scans.SeverityUnknown)
	c := report(scans.ScannerGrype, scans.SeverityMedium)

	want := Aggregate(a, b, c)
	for _, order := range [][]*scans.ScanReport{{a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a}} {
		assert.Equal(t, want, Aggregate(order...))
	}
	assert.Equal(t, want, Aggregate(a, b).Add(Aggregate(c)))
	assert.Equal(t, want, Aggregate(a).Add(Aggregate(b, c)))
}

// Findings with a missing severity land in Unknown and do not move the gate.
func TestUnknownExcludedFromGating(t *testing.T) {
	raw := []byte(`{"matches": [
		{"vulnerability": {"id": "CVE-1", "severity": "High"}},
		{"vulnerability": {"id": "CVE-2"}},
		{"vulnerability": {"id": "CVE-3", "severity": null}}
	]}`)
	rep, err := scans.GrypeAdapter{}.Parse(raw, "ee", at)
	assert.NoError(t, err)

	tally := Aggregate(rep)
	assert.Equal(t, SeverityTally{High: 1, Unknown: 2}, tally)
	assert.Equal(t, 1, tally.Named())

	d := Evaluate(tally, PolicyLow)
	assert.Equal(t, map[scans.Severity]int{scans.SeverityHigh: 1}, d.Triggering)
}

func TestAggregateDegradedReportIsZero(t *testing.T) {
	rep, err := scans.Ingest(scans.TrivyAdapter{}, []byte("{broken"), "ee", at)
	assert.Error(t, err)
	assert.Equal(t, SeverityTally{}, Aggregate(rep))
}
