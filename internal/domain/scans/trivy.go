package scans

import "time"

// trivyDocument is the subset of `trivy image --format json` we read.
type trivyDocument struct {
	Results []struct {
		Target          label `json:"Target"`
		Vulnerabilities []struct {
			VulnerabilityID  label `json:"VulnerabilityID"`
			PkgName          label `json:"PkgName"`
			InstalledVersion label `json:"InstalledVersion"`
			FixedVersion     label `json:"FixedVersion"`
			Severity         label `json:"Severity"`
		} `json:"Vulnerabilities"`
	} `json:"Results"`
}

// TrivyAdapter reads Results[].Vulnerabilities[].Severity.
type TrivyAdapter struct{}

func (TrivyAdapter) Scanner() Scanner { return ScannerTrivy }
func (TrivyAdapter) Format() Format   { return FormatJSON }

func (TrivyAdapter) Parse(raw []byte, target string, at time.Time) (*ScanReport, error) {
	var doc trivyDocument
	if err := decode(ScannerTrivy, raw, &doc); err != nil {
		return nil, err
	}
	var findings []Finding
	for _, res := range doc.Results {
		for _, v := range res.Vulnerabilities {
			findings = append(findings, Finding{
				ID:       string(v.VulnerabilityID),
				Severity: NormalizeSeverity(string(v.Severity)),
				Source:   ScannerTrivy,
				Package:  string(v.PkgName),
				Version:  string(v.InstalledVersion),
				FixedIn:  string(v.FixedVersion),
			})
		}
	}
	return NewScanReport(ScannerTrivy, target, at, findings), nil
}
