package docker

import (
	"context"
	"fmt"
	"os/exec"

	domain "github.com/bryanwahyu/vulngate/internal/domain/scans"
)

// Inspector checks the local docker image store.
type Inspector struct {
	lookPath func(string) (string, error)
	exec     execFunc
}

func NewInspector() *Inspector {
	return &Inspector{lookPath: exec.LookPath, exec: runCommand}
}

// Exists returns ErrImageNotFound when the image is not present locally or
// docker cannot be asked.
func (i *Inspector) Exists(ctx context.Context, image string) error {
	if _, err := i.lookPath("docker"); err != nil {
		return fmt.Errorf("%w: %s (docker not in PATH, cannot inspect)", domain.ErrImageNotFound, image)
	}
	_, code, err := i.exec(ctx, "docker", "image", "inspect", "--format", "{{.Id}}", image)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", image, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: %s", domain.ErrImageNotFound, image)
	}
	return nil
}
