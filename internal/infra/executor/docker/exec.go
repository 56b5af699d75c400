package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// execFunc runs a command and returns its stdout and exit code. err is only
// set when the command could not run at all.
type execFunc func(ctx context.Context, name string, args ...string) ([]byte, int, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// ambil exit code
		var ee *exec.ExitError
		if errors.As(err, &ee) && ctx.Err() == nil {
			return stdout.Bytes(), ee.ExitCode(), nil
		}
		return nil, -1, fmt.Errorf("%s: %w, stderr=%s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), 0, nil
}
