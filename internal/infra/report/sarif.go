package report

import (
	"io"
	"sort"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

var scannerURIs = map[scans.Scanner]string{
	scans.ScannerGrype: "https://github.com/anchore/grype",
	scans.ScannerTrivy: "https://github.com/aquasecurity/trivy",
}

// SARIF converts a report to a SARIF 2.1.0 log with one rule per vulnerability ID.
// The canonical severity is kept in the rule and result properties so the log
// reads back with the same tally.
func SARIF(rep *scans.ScanReport) (*sarif.Report, error) {
	log, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, err
	}
	run := sarif.NewRunWithInformationURI(string(rep.Scanner()), scannerURIs[rep.Scanner()])
	for _, f := range sortedFindings(rep) {
		props := sarif.Properties{"severity": string(f.Severity)}
		run.AddRule(f.ID).
			WithDescription(f.ID).
			WithProperties(props)

		res := run.CreateResultForRule(f.ID).
			WithLevel(sarifLevel(f.Severity)).
			WithMessage(sarif.NewTextMessage(findingMessage(f)))
		res.Properties = props
	}
	log.AddRun(run)
	return log, nil
}

// WriteSARIF writes the indented SARIF log of a report.
func WriteSARIF(w io.Writer, rep *scans.ScanReport) error {
	log, err := SARIF(rep)
	if err != nil {
		return err
	}
	return log.PrettyWrite(w)
}

func sarifLevel(s scans.Severity) string {
	switch s {
	case scans.SeverityCritical, scans.SeverityHigh:
		return "error"
	case scans.SeverityMedium:
		return "warning"
	case scans.SeverityLow:
		return "note"
	default:
		return "none"
	}
}

func findingMessage(f scans.Finding) string {
	msg := f.ID + " (" + string(f.Severity) + ")"
	if f.Package != "" {
		msg += " in " + f.Package
		if f.Version != "" {
			msg += " " + f.Version
		}
	}
	if f.FixedIn != "" {
		msg += ", fixed in " + f.FixedIn
	}
	return msg
}

func sortedFindings(rep *scans.ScanReport) []scans.Finding {
	fs := rep.Findings()
	sort.SliceStable(fs, func(i, j int) bool {
		return fs[i].Severity.Rank() > fs[j].Severity.Rank()
	})
	return fs
}
