package scans

import (
	"fmt"
	"strings"
	"time"
)

// Scanner enum
type Scanner string

const (
	ScannerGrype Scanner = "grype"
	ScannerTrivy Scanner = "trivy"
)

// Scanners lists every backend that has an ingestion adapter.
var Scanners = []Scanner{ScannerGrype, ScannerTrivy}

// ParseScanner resolves a backend name, case-insensitive.
func ParseScanner(s string) (Scanner, error) {
	name := Scanner(strings.ToLower(strings.TrimSpace(s)))
	for _, sc := range Scanners {
		if sc == name {
			return sc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScanner, s)
}

// Format of the raw scanner output
type Format string

const (
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

// Finding is one reported vulnerability instance.
// Package, Version and FixedIn are informational only.
type Finding struct {
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	Source   Scanner  `json:"source"`
	Package  string   `json:"package,omitempty"`
	Version  string   `json:"version,omitempty"`
	FixedIn  string   `json:"fixed_in,omitempty"`
}

// ScanReport is the immutable result of one scanner invocation.
type ScanReport struct {
	scanner   Scanner
	target    string
	createdAt time.Time
	findings  []Finding
	degraded  bool
}

// NewScanReport copies findings so later changes by the caller are not visible.
func NewScanReport(scanner Scanner, target string, at time.Time, findings []Finding) *ScanReport {
	cp := make([]Finding, len(findings))
	copy(cp, findings)
	return &ScanReport{scanner: scanner, target: target, createdAt: at, findings: cp}
}

// degradedReport stands in for output that could not be parsed.
func degradedReport(scanner Scanner, target string, at time.Time) *ScanReport {
	return &ScanReport{scanner: scanner, target: target, createdAt: at, degraded: true}
}

func (r *ScanReport) Scanner() Scanner     { return r.scanner }
func (r *ScanReport) Target() string       { return r.target }
func (r *ScanReport) CreatedAt() time.Time { return r.createdAt }
func (r *ScanReport) Len() int             { return len(r.findings) }

// Degraded is true when the scanner output was malformed and counts were zeroed.
func (r *ScanReport) Degraded() bool { return r.degraded }

// Findings returns a copy of the report findings, in scanner order.
func (r *ScanReport) Findings() []Finding {
	out := make([]Finding, len(r.findings))
	copy(out, r.findings)
	return out
}
