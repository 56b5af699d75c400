package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

var severityColors = map[scans.Severity]*color.Color{
	scans.SeverityCritical: color.New(color.FgRed, color.Bold),
	scans.SeverityHigh:     color.New(color.FgRed),
	scans.SeverityMedium:   color.New(color.FgYellow),
	scans.SeverityLow:      color.New(color.FgCyan),
	scans.SeverityUnknown:  color.New(color.FgWhite),
}

// label pads before coloring so escape codes do not break alignment.
func label(s scans.Severity, width int) string {
	padded := fmt.Sprintf("%-*s", width, s)
	if c, ok := severityColors[s]; ok {
		return c.Sprint(padded)
	}
	return padded
}

// WriteTable prints the severity counts and the gate outcome.
func WriteTable(w io.Writer, image string, t gate.SeverityTally, d gate.Decision, degraded bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Vulnerability summary for %s\n", image)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 24))
	for _, s := range scans.Severities {
		fmt.Fprintf(&b, "%s %8d\n", label(s, 10), t.Count(s))
	}
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 24))
	fmt.Fprintf(&b, "%-10s %8d\n", "Total", t.Total())

	outcome := color.New(color.FgGreen, color.Bold).Sprint("PASS")
	if d.Failed() {
		outcome = color.New(color.FgRed, color.Bold).Sprint("FAIL")
	}
	fmt.Fprintf(&b, "\nGate (fail-on=%s): %s\n", d.Policy, outcome)
	for _, s := range d.Policy.Gated() {
		if n, ok := d.Triggering[s]; ok {
			fmt.Fprintf(&b, "  %s %d\n", label(s, 10), n)
		}
	}
	if degraded {
		fmt.Fprintf(&b, "\n%s scanner output could not be parsed; affected counts are zero\n",
			color.New(color.FgYellow).Sprint("WARNING:"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFindings prints one row per finding, most severe first.
func WriteFindings(w io.Writer, rep *scans.ScanReport) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tPACKAGE\tVERSION\tFIXED IN")
	for _, f := range sortedFindings(rep) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", dash(f.ID), f.Severity, dash(f.Package), dash(f.Version), dash(f.FixedIn))
	}
	return tw.Flush()
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
