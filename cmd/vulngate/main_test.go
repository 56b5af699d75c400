package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/vulngate/internal/application"
	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
	"github.com/bryanwahyu/vulngate/internal/infra/executor/docker"
)

func init() {
	color.NoColor = true
}

const (
	grypeOut = `{"matches": [
  {"vulnerability": {"id": "CVE-1", "severity": "High"}},
  {"vulnerability": {"id": "CVE-2", "severity": "Low"}}
]}`
	trivyOut = `{"Results": [{"Vulnerabilities": [{"VulnerabilityID": "CVE-3", "Severity": "MEDIUM"}]}]}`
)

type stubRunner struct {
	outputs map[scans.Scanner]string
	missing bool
	mode    docker.Mode
}

func (s *stubRunner) Available(sc scans.Scanner) error {
	if s.missing {
		return fmt.Errorf("%w: %s", scans.ErrScannerUnavailable, sc)
	}
	return nil
}

func (s *stubRunner) Run(_ context.Context, req scans.RunRequest) (scans.RunResult, error) {
	return scans.RunResult{Raw: []byte(s.outputs[req.Scanner]), Format: scans.FormatJSON}, nil
}

type stubInspector struct{ err error }

func (s stubInspector) Exists(context.Context, string) error { return s.err }

type harness struct {
	app    *app
	fs     afero.Fs
	runner *stubRunner
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness() *harness {
	h := &harness{
		fs:     afero.NewMemMapFs(),
		runner: &stubRunner{outputs: map[scans.Scanner]string{scans.ScannerGrype: grypeOut, scans.ScannerTrivy: trivyOut}},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	h.app = &app{
		stdout: h.stdout,
		stderr: h.stderr,
		fs:     h.fs,
		clock:  application.FixedClock(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)),
		newRunner: func(mode docker.Mode) scans.Runner {
			h.runner.mode = mode
			return h.runner
		},
		inspector: stubInspector{},
	}
	return h
}

func (h *harness) run(args ...string) int {
	return h.app.execute(context.Background(), args)
}

func TestScanFailsOnHighByDefault(t *testing.T) {
	h := newHarness()
	code := h.run("scan", "ee:1", "--scanner", "grype,trivy", "--output-dir", "out")

	assert.Equal(t, gate.ExitFail, code)
	assert.Contains(t, h.stdout.String(), "Vulnerability summary for ee:1")
	assert.Contains(t, h.stdout.String(), "FAIL")
	assert.Contains(t, h.stdout.String(), "Reports written to out (7 files)")
	assert.Equal(t, docker.ModeLocal, h.runner.mode)

	matches, err := afero.Glob(h.fs, "out/*_summary.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"out/ee_1_20240301_103000_summary.json"}, matches)
}

func TestScanPassesWithCriticalPolicy(t *testing.T) {
	h := newHarness()
	code := h.run("scan", "ee:1", "--fail-on", "CRITICAL", "--format", "json", "--mode", "docker")

	assert.Equal(t, gate.ExitPass, code, h.stderr.String())
	assert.Equal(t, docker.ModeDocker, h.runner.mode)

	var out struct {
		Outcome string         `json:"outcome"`
		Counts  map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &out))
	assert.Equal(t, "pass", out.Outcome)
	assert.Equal(t, 1, out.Counts["high"])
	assert.Equal(t, 1, out.Counts["low"])
}

func TestScanErrors(t *testing.T) {
	cases := map[string]struct {
		args  []string
		setup func(h *harness)
		want  string
	}{
		"missing scanner": {
			args:  []string{"scan", "ee:1"},
			setup: func(h *harness) { h.runner.missing = true },
			want:  "scanner unavailable",
		},
		"image not found": {
			args:  []string{"scan", "ee:1"},
			setup: func(h *harness) { h.app.inspector = stubInspector{err: scans.ErrImageNotFound} },
			want:  "image not found",
		},
		"bad policy":  {args: []string{"scan", "ee:1", "--fail-on", "severe"}, want: "invalid"},
		"bad scanner": {args: []string{"scan", "ee:1", "--scanner", "clair"}, want: "unknown scanner"},
		"bad format":  {args: []string{"scan", "ee:1", "--format", "xml"}, want: "--format"},
		"no image":    {args: []string{"scan"}, want: "accepts 1 arg"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			if tc.setup != nil {
				tc.setup(h)
			}
			assert.Equal(t, gate.ExitError, h.run(tc.args...))
			assert.Contains(t, h.stderr.String(), tc.want)
			assert.Empty(t, h.stdout.String())
		})
	}
}

func TestScanProceedIfMissing(t *testing.T) {
	h := newHarness()
	h.app.inspector = stubInspector{err: scans.ErrImageNotFound}

	code := h.run("scan", "ee:1", "--proceed-if-missing", "--fail-on", "NONE")
	assert.Equal(t, gate.ExitPass, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "PASS")
}

func TestGateFromFiles(t *testing.T) {
	h := newHarness()
	require.NoError(t, afero.WriteFile(h.fs, "grype.json", []byte(grypeOut), 0o644))
	require.NoError(t, afero.WriteFile(h.fs, "trivy.json", []byte(trivyOut), 0o644))

	code := h.run("gate",
		"--scanner", "grype", "--input", "grype.json",
		"--scanner", "trivy", "--input", "trivy.json",
		"--fail-on", "MEDIUM", "--image", "ee:1", "--output-dir", "out")

	assert.Equal(t, gate.ExitFail, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "FAIL")
	ok, err := afero.Exists(h.fs, "out/ee_1_20240301_103000_summary.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGateTwoOutputsOfOneScanner(t *testing.T) {
	h := newHarness()
	require.NoError(t, afero.WriteFile(h.fs, "a.json",
		[]byte(`{"matches": [{"vulnerability": {"id": "CVE-A", "severity": "Critical"}}]}`), 0o644))
	require.NoError(t, afero.WriteFile(h.fs, "b.json",
		[]byte(`{"matches": [{"vulnerability": {"id": "CVE-B", "severity": "Low"}}]}`), 0o644))

	code := h.run("gate",
		"--scanner", "grype", "--input", "a.json",
		"--scanner", "grype", "--input", "b.json",
		"--image", "ee:1", "--output-dir", "out")

	assert.Equal(t, gate.ExitFail, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Reports written to out (7 files)")

	files, err := afero.ReadDir(h.fs, "out")
	require.NoError(t, err)
	assert.Len(t, files, 7)

	raw, err := afero.ReadFile(h.fs, "out/ee_1_20240301_103000_grype.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "CVE-A")
}

func TestGateMalformedInputIsDegraded(t *testing.T) {
	h := newHarness()
	require.NoError(t, afero.WriteFile(h.fs, "grype.json", []byte("not json"), 0o644))

	code := h.run("gate", "--scanner", "grype", "--input", "grype.json")
	assert.Equal(t, gate.ExitPass, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "WARNING:")
}

func TestGateInputErrors(t *testing.T) {
	h := newHarness()
	assert.Equal(t, gate.ExitError, h.run("gate", "--scanner", "grype"))
	assert.Contains(t, h.stderr.String(), "one --input per --scanner")

	h = newHarness()
	assert.Equal(t, gate.ExitError, h.run("gate", "--scanner", "grype", "--input", "missing.json"))
	assert.Contains(t, h.stderr.String(), "read grype output")

	h = newHarness()
	require.NoError(t, afero.WriteFile(h.fs, "x.json", []byte(grypeOut), 0o644))
	assert.Equal(t, gate.ExitError, h.run("gate", "--scanner", "grype", "--input", "x.json", "--input-format", "xml"))
	assert.Contains(t, h.stderr.String(), "unknown output format")
}

func TestRootHelp(t *testing.T) {
	h := newHarness()
	assert.Equal(t, gate.ExitPass, h.run("--help"))
	out := h.stdout.String()
	assert.True(t, strings.HasPrefix(out, "Container image vulnerability gate\n"), out)
	assert.NotContains(t, out, "\u2014")
}

func TestConfigFileAndFlagOverride(t *testing.T) {
	h := newHarness()
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, writeFile(path, "gate:\n  failOn: NONE\n  scanners: [trivy]\n"))

	assert.Equal(t, gate.ExitPass, h.run("scan", "ee:1", "--config", path))

	h = newHarness()
	assert.Equal(t, gate.ExitFail, h.run("scan", "ee:1", "--config", path, "--fail-on", "MEDIUM"))
}

func writeFile(path, body string) error {
	return afero.WriteFile(afero.NewOsFs(), path, []byte(body), 0o600)
}
