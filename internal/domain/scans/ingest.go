package scans

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Adapter turns the raw output of one scanner backend into a ScanReport.
// Adding a backend means adding an Adapter; nothing downstream branches on the scanner.
type Adapter interface {
	Scanner() Scanner
	Format() Format
	Parse(raw []byte, target string, at time.Time) (*ScanReport, error)
}

// AdapterFor picks the adapter for a scanner and output format.
// An empty format means the scanner's native JSON.
func AdapterFor(scanner Scanner, format Format) (Adapter, error) {
	if format == FormatSARIF {
		if _, err := ParseScanner(string(scanner)); err != nil {
			return nil, err
		}
		return SARIFAdapter{Source: scanner}, nil
	}
	if format != "" && format != FormatJSON {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	switch scanner {
	case ScannerGrype:
		return GrypeAdapter{}, nil
	case ScannerTrivy:
		return TrivyAdapter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScanner, scanner)
	}
}

// Ingest parses raw output and never returns a nil report. When the output is
// malformed the report is empty and Degraded, and the parse error is returned
// alongside it so the caller can log it.
func Ingest(a Adapter, raw []byte, target string, at time.Time) (*ScanReport, error) {
	rep, err := a.Parse(raw, target, at)
	if err != nil {
		return degradedReport(a.Scanner(), target, at), err
	}
	return rep, nil
}

// label is a lenient scalar. Strings decode as-is, numbers keep their literal
// text, anything else decodes as empty. One odd field must not erase a report.
type label string

func (l *label) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*l = label(s)
		return nil
	}
	var n json.Number
	if json.Unmarshal(b, &n) == nil {
		*l = label(n.String())
		return nil
	}
	*l = ""
	return nil
}

// labels accepts a list of scalars or a single scalar.
type labels []label

func (ls *labels) UnmarshalJSON(b []byte) error {
	var many []label
	if json.Unmarshal(b, &many) == nil {
		*ls = many
		return nil
	}
	var one label
	_ = json.Unmarshal(b, &one)
	if one == "" {
		*ls = nil
		return nil
	}
	*ls = labels{one}
	return nil
}

func (ls labels) join(sep string) string {
	parts := make([]string, 0, len(ls))
	for _, l := range ls {
		if l != "" {
			parts = append(parts, string(l))
		}
	}
	return strings.Join(parts, sep)
}

func decode(scanner Scanner, raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedScanOutput, scanner, err)
	}
	return nil
}
