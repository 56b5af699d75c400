package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	appscans "github.com/bryanwahyu/vulngate/internal/application/scans"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
	"github.com/bryanwahyu/vulngate/internal/infra/report"
)

type gateFlags struct {
	scanners    []string
	inputs      []string
	inputFormat string
	failOn      string
	image       string
	outputDir   string
	format      string
}

// gateCmd gates scanner output produced elsewhere, e.g. by an earlier CI step.
// The n-th --input belongs to the n-th --scanner.
func (a *app) gateCmd(g *globalOptions) *cobra.Command {
	f := &gateFlags{}
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Gate existing scanner output without running a scanner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			override(flags, "fail-on", &cfg.Gate.FailOn, f.failOn)
			override(flags, "output-dir", &cfg.Gate.OutputDir, f.outputDir)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := checkOutputFormat(f.format); err != nil {
				return err
			}
			if len(f.inputs) == 0 || len(f.inputs) != len(f.scanners) {
				return fmt.Errorf("need one --input per --scanner, got %d inputs for %d scanners", len(f.inputs), len(f.scanners))
			}
			format := scans.Format(f.inputFormat)

			outputs := make([]appscans.RawOutput, 0, len(f.inputs))
			for i, path := range f.inputs {
				sc, err := scans.ParseScanner(f.scanners[i])
				if err != nil {
					return err
				}
				data, err := afero.ReadFile(a.fs, path)
				if err != nil {
					return fmt.Errorf("read %s output: %w", sc, err)
				}
				outputs = append(outputs, appscans.RawOutput{Scanner: sc, Format: format, Data: data})
			}

			log, err := g.logger(a, cfg)
			if err != nil {
				return err
			}
			svc := &appscans.Service{
				Writer: &report.Writer{Fs: a.fs, Dir: cfg.Gate.OutputDir},
				Clock:  a.clock,
				Log:    log,
			}
			res, err := svc.Evaluate(cmd.Context(), appscans.EvaluateCommand{
				Image:   f.image,
				Policy:  cfg.Gate.FailOn,
				Outputs: outputs,
			})
			if err != nil {
				return err
			}
			return a.printResult(res, f.format, cfg.Gate.OutputDir)
		},
	}
	cmd.Flags().StringArrayVarP(&f.scanners, "scanner", "s", nil, "Scanner that produced the matching --input (grype|trivy)")
	cmd.Flags().StringArrayVarP(&f.inputs, "input", "i", nil, "Scanner output file, repeatable")
	cmd.Flags().StringVar(&f.inputFormat, "input-format", string(scans.FormatJSON), "Input format (json|sarif)")
	cmd.Flags().StringVar(&f.failOn, "fail-on", "", "Fail on >= severity (CRITICAL|HIGH|MEDIUM|LOW|NONE)")
	cmd.Flags().StringVar(&f.image, "image", "unknown", "Image name used in report file names")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for report files")
	cmd.Flags().StringVar(&f.format, "format", "table", "Stdout format (table|json)")
	return cmd
}
