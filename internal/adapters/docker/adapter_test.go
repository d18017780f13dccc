package docker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocker struct {
	client.APIClient

	config   *container.Config
	host     *container.HostConfig
	startErr error
	started  []string
	stopped  []string
	removed  []string
	force    bool
}

func (f *fakeDocker) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	f.config = config
	f.host = hostConfig
	return container.CreateResponse{ID: "3f2a9c1b7d4e8f60aa"}, nil
}

func (f *fakeDocker) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeDocker) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeDocker) ContainerRemove(_ context.Context, id string, options container.RemoveOptions) error {
	f.removed = append(f.removed, id)
	f.force = options.Force
	return nil
}

func (f *fakeDocker) ContainerLogs(_ context.Context, _ string, options container.LogsOptions) (io.ReadCloser, error) {
	if !options.ShowStdout || !options.ShowStderr {
		return nil, errors.New("both streams expected")
	}
	return io.NopCloser(strings.NewReader("listening on 0.0.0.0:8000\n")), nil
}

func TestRunImagePublishesPortOnLoopback(t *testing.T) {
	f := &fakeDocker{}
	a := &Adapter{cli: f}

	c, err := a.RunImage(context.Background(), "shiporbit/api:latest", "8000", "18000", []string{"DATABASE_DRIVER=sqlite"})
	require.NoError(t, err)
	assert.Equal(t, "3f2a9c1b7d4e8f60aa", c.ID)
	assert.Equal(t, "3f2a9c1b7d4e", c.Name)
	assert.Equal(t, "18000", c.HostPort)
	assert.Equal(t, "running", c.State)

	assert.Equal(t, "shiporbit/api:latest", f.config.Image)
	assert.Equal(t, []string{"DATABASE_DRIVER=sqlite"}, f.config.Env)
	port := nat.Port("8000/tcp")
	assert.Contains(t, f.config.ExposedPorts, port)
	assert.Equal(t, []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "18000"}}, f.host.PortBindings[port])
	assert.Equal(t, []string{c.ID}, f.started)
}

func TestRunImageRemovesContainerThatFailsToStart(t *testing.T) {
	f := &fakeDocker{startErr: errors.New("port is already allocated")}
	a := &Adapter{cli: f}

	_, err := a.RunImage(context.Background(), "shiporbit/api:latest", "8000", "8000", nil)
	assert.ErrorContains(t, err, "port is already allocated")
	assert.Equal(t, []string{"3f2a9c1b7d4e8f60aa"}, f.removed)
	assert.True(t, f.force)
}

func TestRunImageRejectsBadPort(t *testing.T) {
	_, err := (&Adapter{cli: &fakeDocker{}}).RunImage(context.Background(), "x", "http", "8000", nil)
	assert.ErrorContains(t, err, "invalid container port")
}

func TestStopContainerRemovesIt(t *testing.T) {
	f := &fakeDocker{}
	a := &Adapter{cli: f}

	require.NoError(t, a.StopContainer(context.Background(), "abc"))
	assert.Equal(t, []string{"abc"}, f.stopped)
	assert.Equal(t, []string{"abc"}, f.removed)
	assert.False(t, f.force)
}

func TestGetContainerLogs(t *testing.T) {
	rc, err := (&Adapter{cli: &fakeDocker{}}).GetContainerLogs(context.Background(), "abc")
	require.NoError(t, err)
	defer rc.Close()
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "listening on 0.0.0.0:8000\n", string(out))
}
