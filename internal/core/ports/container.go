package ports

import (
	"context"
	"io"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

// ContainerService runs short-lived containers from built images.
// This interface allows the release pipeline to smoke test an image
// without knowing whether Docker or Podman is underneath.
type ContainerService interface {
	// RunImage starts image with containerPort published on hostPort and env
	// (KEY=value entries) added to its environment.
	RunImage(ctx context.Context, image, containerPort, hostPort string, env []string) (domain.Container, error)
	StopContainer(ctx context.Context, id string) error
	GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error)
}
