package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	log "github.com/sirupsen/logrus"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

// Adapter implements ports.ContainerService using Docker SDK
type Adapter struct {
	cli client.APIClient
}

// NewAdapter creates a new Docker adapter instance
func NewAdapter() (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli}, nil
}

// RunImage creates and starts a container from a locally built image,
// publishing containerPort/tcp on hostPort of the loopback interface.
func (a *Adapter) RunImage(ctx context.Context, image, containerPort, hostPort string, env []string) (domain.Container, error) {
	port, err := nat.NewPort("tcp", containerPort)
	if err != nil {
		return domain.Container{}, fmt.Errorf("invalid container port %q: %w", containerPort, err)
	}

	resp, err := a.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        image,
			Env:          env,
			ExposedPorts: nat.PortSet{port: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: hostPort}},
			},
		},
		nil, nil, "")
	if err != nil {
		return domain.Container{}, fmt.Errorf("failed to create container: %w", err)
	}
	for _, w := range resp.Warnings {
		log.WithField("container", short(resp.ID)).Warn(w)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		a.remove(resp.ID)
		return domain.Container{}, fmt.Errorf("failed to start container: %w", err)
	}

	return domain.Container{
		ID:       resp.ID,
		Name:     short(resp.ID),
		Image:    image,
		HostPort: hostPort,
		State:    "running",
	}, nil
}

// StopContainer stops the container and removes it; smoke containers are never reused.
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	timeout := 10
	ctx, cancel := context.WithTimeout(ctx, 2*time.Duration(timeout)*time.Second)
	defer cancel()
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	if err := a.cli.ContainerRemove(ctx, id, container.RemoveOptions{RemoveVolumes: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// GetContainerLogs returns a stream of container logs
func (a *Adapter) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     false,
		Timestamps: true,
	}
	return a.cli.ContainerLogs(ctx, id, options)
}

func (a *Adapter) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		log.WithFields(log.Fields{"container": short(id), "error": err}).Warn("failed to remove container")
	}
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
