package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/vulngate/internal/application"
	"github.com/bryanwahyu/vulngate/internal/domain/gate"
	"github.com/bryanwahyu/vulngate/internal/domain/scans"
	"github.com/bryanwahyu/vulngate/internal/infra/executor/docker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp(os.Stdout, os.Stderr).execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// app holds the collaborators the commands use; tests swap them for fakes.
type app struct {
	stdout    io.Writer
	stderr    io.Writer
	fs        afero.Fs
	clock     application.Clock
	newRunner func(mode docker.Mode) scans.Runner
	inspector scans.ImageInspector
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:    stdout,
		stderr:    stderr,
		fs:        afero.NewOsFs(),
		clock:     application.SystemClock{},
		newRunner: func(mode docker.Mode) scans.Runner { return docker.NewRunner(mode) },
		inspector: docker.NewInspector(),
	}
}

// outcomeError carries a gate failure out of cobra as an exit status.
type outcomeError struct{ code int }

func (e *outcomeError) Error() string { return fmt.Sprintf("gate failed (exit %d)", e.code) }

// execute runs the CLI and maps the result to 0 pass, 1 gate fail, 2 error.
func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return gate.ExitPass
	}
	var oe *outcomeError
	if errors.As(err, &oe) {
		return oe.code
	}
	fmt.Fprintln(a.stderr, "error:", err)
	return gate.ExitError
}

func (a *app) rootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "vulngate",
		Short:         "Container image vulnerability gate",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.yaml (optional)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug|info|warn|error)")

	root.AddCommand(a.scanCmd(opts), a.gateCmd(opts))
	return root
}
