package docker

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	domain "github.com/bryanwahyu/vulngate/internal/domain/scans"
)

// Mode selects how scanners are launched.
type Mode string

const (
	// ModeLocal runs the scanner binary from PATH.
	ModeLocal Mode = "local"
	// ModeDocker runs the scanner's published container image.
	ModeDocker Mode = "docker"
)

var scannerImages = map[domain.Scanner]string{
	domain.ScannerGrype: "anchore/grype:latest",
	domain.ScannerTrivy: "aquasec/trivy:latest",
}

type Runner struct {
	mode     Mode
	lookPath func(string) (string, error)
	exec     execFunc
}

func NewRunner(mode Mode) *Runner {
	if mode == "" {
		mode = ModeLocal
	}
	return &Runner{mode: mode, lookPath: exec.LookPath, exec: runCommand}
}

// Run executes one scanner against an image and returns its raw output.
// A missing tool is reported as ErrScannerUnavailable and is not retried.
func (r *Runner) Run(ctx context.Context, req domain.RunRequest) (domain.RunResult, error) {
	format := req.Format
	if format == "" {
		format = domain.FormatJSON
	}
	name, args, err := r.command(req.Scanner, req.Image, format)
	if err != nil {
		return domain.RunResult{}, err
	}
	if err := r.available(name); err != nil {
		return domain.RunResult{}, err
	}

	start := time.Now()
	out, exitCode, err := r.exec(ctx, name, args...)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("run %s: %w", req.Scanner, err)
	}
	return domain.RunResult{
		Raw:        out,
		Format:     format,
		ExitCode:   exitCode,
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// Available checks the scanner (or docker, in docker mode) is on PATH.
func (r *Runner) Available(scanner domain.Scanner) error {
	name, _, err := r.command(scanner, "", domain.FormatJSON)
	if err != nil {
		return err
	}
	return r.available(name)
}

func (r *Runner) available(name string) error {
	if _, err := r.lookPath(name); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", domain.ErrScannerUnavailable, name)
	}
	return nil
}

func (r *Runner) command(scanner domain.Scanner, image string, format domain.Format) (string, []string, error) {
	var args []string
	switch scanner {
	case domain.ScannerGrype:
		args = []string{image, "-o", string(format), "--quiet"}
	case domain.ScannerTrivy:
		args = []string{"image", "--scanners", "vuln", "--format", string(format), "--quiet", image}
	default:
		return "", nil, fmt.Errorf("%w: %s", domain.ErrUnknownScanner, scanner)
	}

	if r.mode == ModeLocal {
		return string(scanner), args, nil
	}
	docker := []string{"run", "--rm",
		"-v", "/var/run/docker.sock:/var/run/docker.sock",
		scannerImages[scanner],
	}
	return "docker", append(docker, args...), nil
}
