package scans

import "time"

// grypeDocument is the subset of `grype -o json` we read.
type grypeDocument struct {
	Matches []struct {
		Vulnerability struct {
			ID       label `json:"id"`
			Severity label `json:"severity"`
			Fix      struct {
				Versions labels `json:"versions"`
				State    label  `json:"state"`
			} `json:"fix"`
		} `json:"vulnerability"`
		Artifact struct {
			Name    label `json:"name"`
			Version label `json:"version"`
		} `json:"artifact"`
	} `json:"matches"`
}

// GrypeAdapter reads matches[].vulnerability.severity.
type GrypeAdapter struct{}

func (GrypeAdapter) Scanner() Scanner { return ScannerGrype }
func (GrypeAdapter) Format() Format   { return FormatJSON }

func (GrypeAdapter) Parse(raw []byte, target string, at time.Time) (*ScanReport, error) {
	var doc grypeDocument
	if err := decode(ScannerGrype, raw, &doc); err != nil {
		return nil, err
	}
	findings := make([]Finding, 0, len(doc.Matches))
	for _, m := range doc.Matches {
		findings = append(findings, Finding{
			ID:       string(m.Vulnerability.ID),
			Severity: NormalizeSeverity(string(m.Vulnerability.Severity)),
			Source:   ScannerGrype,
			Package:  string(m.Artifact.Name),
			Version:  string(m.Artifact.Version),
			FixedIn:  m.Vulnerability.Fix.Versions.join(","),
		})
	}
	return NewScanReport(ScannerGrype, target, at, findings), nil
}
