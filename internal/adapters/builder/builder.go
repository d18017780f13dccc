package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/patternmatcher/ignorefile"
	log "github.com/sirupsen/logrus"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

// Adapter implements ports.ImageBuilder against the local docker daemon.
type Adapter struct {
	cli  client.APIClient
	out  io.Writer
	auth string
}

// NewBuilderAdapter connects to the daemon named by the DOCKER_* environment.
// Build and push progress is written to out.
func NewBuilderAdapter(out io.Writer) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if out == nil {
		out = io.Discard
	}
	return &Adapter{cli: cli, out: out}, nil
}

// Login checks the credentials with the registry and keeps them for Push.
func (a *Adapter) Login(ctx context.Context, creds domain.RegistryCredentials) error {
	cfg := registry.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Password,
		ServerAddress: creds.ServerAddress,
	}
	resp, err := a.cli.RegistryLogin(ctx, cfg)
	if err != nil {
		return fmt.Errorf("registry login failed: %w", err)
	}
	if resp.IdentityToken != "" {
		cfg.Password = ""
		cfg.IdentityToken = resp.IdentityToken
	}
	auth, err := registry.EncodeAuthConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode registry auth: %w", err)
	}
	a.auth = auth
	log.WithFields(log.Fields{"user": creds.Username, "status": resp.Status}).Info("logged in to registry")
	return nil
}

// Build tars the context (minus .dockerignore'd paths) and builds it with every tag of req.
func (a *Adapter) Build(ctx context.Context, req domain.BuildRequest) (string, error) {
	excludes, err := dockerignore(req.ContextDir)
	if err != nil {
		return "", err
	}

	tar, err := archive.TarWithOptions(req.ContextDir, &archive.TarOptions{ExcludePatterns: excludes})
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}
	defer tar.Close()

	dockerfile := req.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:        req.Tags,
		Dockerfile:  dockerfile,
		Labels:      req.Labels,
		Remove:      true, // Remove intermediate containers
		ForceRemove: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	var imageID string
	aux := func(msg jsonmessage.JSONMessage) {
		var result types.BuildResult
		if err := json.Unmarshal(*msg.Aux, &result); err == nil && result.ID != "" {
			imageID = result.ID
		}
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, a.out, 0, false, aux); err != nil {
		return "", fmt.Errorf("build failed: %w", err)
	}
	if imageID == "" {
		return "", errors.New("build finished without reporting an image id")
	}
	return imageID, nil
}

// Push uploads ref with the auth kept by Login.
func (a *Adapter) Push(ctx context.Context, ref string) error {
	if a.auth == "" {
		return errors.New("push before registry login")
	}
	rc, err := a.cli.ImagePush(ctx, ref, types.ImagePushOptions{RegistryAuth: a.auth})
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", ref, err)
	}
	defer rc.Close()
	if err := jsonmessage.DisplayJSONMessagesStream(rc, a.out, 0, false, nil); err != nil {
		return fmt.Errorf("push of %s failed: %w", ref, err)
	}
	log.WithField("ref", ref).Info("pushed")
	return nil
}

func dockerignore(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, ".dockerignore"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read .dockerignore: %w", err)
	}
	return patterns, nil
}
