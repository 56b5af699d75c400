package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appscans "github.com/bryanwahyu/vulngate/internal/application/scans"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
	"github.com/bryanwahyu/vulngate/internal/infra/executor/docker"
	"github.com/bryanwahyu/vulngate/internal/infra/report"
	"github.com/bryanwahyu/vulngate/internal/middleware"
)

type scanFlags struct {
	scanners         []string
	failOn           string
	outputDir        string
	proceedIfMissing bool
	format           string
	mode             string
}

func (a *app) scanCmd(g *globalOptions) *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan IMAGE",
		Short: "Scan an image with one or more scanners and gate the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			override(flags, "scanner", &cfg.Gate.Scanners, f.scanners)
			override(flags, "fail-on", &cfg.Gate.FailOn, f.failOn)
			override(flags, "output-dir", &cfg.Gate.OutputDir, f.outputDir)
			override(flags, "proceed-if-missing", &cfg.Gate.ProceedIfMissing, f.proceedIfMissing)
			override(flags, "mode", &cfg.Gate.Mode, f.mode)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := checkOutputFormat(f.format); err != nil {
				return err
			}
			image := args[0]
			if err := middleware.ValidateImageName(image); err != nil {
				return err
			}

			log, err := g.logger(a, cfg)
			if err != nil {
				return err
			}
			svc := &appscans.Service{
				Runner:      a.newRunner(docker.Mode(cfg.Gate.Mode)),
				Inspector:   a.inspector,
				Writer:      &report.Writer{Fs: a.fs, Dir: cfg.Gate.OutputDir},
				Clock:       a.clock,
				Log:         log,
				Concurrency: cfg.Gate.Concurrency,
			}
			res, err := svc.Scan(cmd.Context(), appscans.ScanCommand{
				Image:            image,
				Scanners:         cfg.Scanners(),
				Policy:           cfg.Gate.FailOn,
				Format:           scans.FormatJSON,
				ProceedIfMissing: cfg.Gate.ProceedIfMissing,
			})
			if err != nil {
				return err
			}
			return a.printResult(res, f.format, cfg.Gate.OutputDir)
		},
	}
	cmd.Flags().StringSliceVarP(&f.scanners, "scanner", "s", nil, "Scanner to run (grype|trivy), repeatable")
	cmd.Flags().StringVar(&f.failOn, "fail-on", "", "Fail on >= severity (CRITICAL|HIGH|MEDIUM|LOW|NONE)")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for report files")
	cmd.Flags().BoolVar(&f.proceedIfMissing, "proceed-if-missing", false, "Scan even when the image is not present locally")
	cmd.Flags().StringVar(&f.format, "format", "table", "Stdout format (table|json)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "Launch scanners from PATH or as containers (local|docker)")
	return cmd
}

func checkOutputFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	}
	return fmt.Errorf("--format: must be table or json, got %q", format)
}

// printResult writes the summary to stdout; a failed gate becomes exit status 1.
func (a *app) printResult(res appscans.Result, format, dir string) error {
	var err error
	if format == "json" {
		err = report.WriteJSON(a.stdout, res.Summary)
	} else {
		err = report.WriteTable(a.stdout, res.Summary.Image, res.Evaluation.Tally, res.Decision, res.Evaluation.Degraded)
		if err == nil && len(res.Artifacts) > 0 {
			fmt.Fprintf(a.stdout, "\nReports written to %s (%d files)\n", dir, len(res.Artifacts))
		}
	}
	if err != nil {
		return err
	}
	if code := res.Decision.Outcome.ExitCode(); code != 0 {
		return &outcomeError{code: code}
	}
	return nil
}
