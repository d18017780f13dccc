package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"

	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
)

// Pipeline step names, in execution order.
const (
	StepCheckout = "checkout"
	StepVersion  = "version"
	StepLogin    = "login"
	StepBuild    = "build"
	StepSmoke    = "smoke"
	StepPush     = "push"
	StepDeploy   = "deploy"
)

// ReleaseConfig parameterises one pipeline run.
type ReleaseConfig struct {
	Account     string
	ImageName   string
	Branch      string
	VersionFile string
	ContextDir  string
	Dockerfile  string
	Credentials domain.RegistryCredentials

	// RepoURL, when set, is cloned instead of using ContextDir as is.
	RepoURL string
	// BranchOverride names the branch of a detached checkout.
	BranchOverride string

	Smoke         bool
	SmokeHostPort string
	SmokeTimeout  time.Duration

	DryRun bool
}

// StepResult records the outcome of one step.
type StepResult struct {
	Step     string
	Duration time.Duration
	Err      error
}

// Report is everything a run did.
type Report struct {
	Release    domain.Release
	ImageID    string
	HookStatus int
	Steps      []StepResult
}

// Failed returns the failing step, if any.
func (r *Report) Failed() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Err != nil {
			return &r.Steps[i]
		}
	}
	return nil
}

// ReleasePipeline builds, tags, pushes and deploys the API image.
// Each step runs only when every earlier step succeeded.
type ReleasePipeline struct {
	source     ports.SourceRepository
	builder    ports.ImageBuilder
	containers ports.ContainerService
	hook       ports.DeployHook
	cfg        ReleaseConfig

	readFile func(string) ([]byte, error)
	healthy  func(ctx context.Context, url string) error
	cloneDir string
}

// Cleanup removes the clone made for a RepoURL run.
func (p *ReleasePipeline) Cleanup() error {
	if p.cloneDir == "" {
		return nil
	}
	return os.RemoveAll(p.cloneDir)
}

// NewReleasePipeline wires a pipeline. containers may be nil when smoke tests are off.
func NewReleasePipeline(source ports.SourceRepository, builder ports.ImageBuilder, containers ports.ContainerService, hook ports.DeployHook, cfg ReleaseConfig) *ReleasePipeline {
	if cfg.SmokeTimeout <= 0 {
		cfg.SmokeTimeout = 30 * time.Second
	}
	if cfg.SmokeHostPort == "" {
		cfg.SmokeHostPort = domain.AppPort
	}
	return &ReleasePipeline{
		source:     source,
		builder:    builder,
		containers: containers,
		hook:       hook,
		cfg:        cfg,
		readFile:   os.ReadFile,
		healthy:    checkHealth,
	}
}

func (p *ReleasePipeline) step(ctx context.Context, r *Report, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	logger := log.WithField("step", name)
	logger.Info("starting")

	err := fn(ctx)
	res := StepResult{Step: name, Duration: time.Since(start), Err: err}
	r.Steps = append(r.Steps, res)

	if err != nil && !errors.Is(err, domain.ErrBranchNotTriggered) {
		logger.WithField("error", err).Error("step failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	if err != nil {
		return err
	}
	logger.WithField("duration", res.Duration.Round(time.Millisecond)).Info("done")
	return nil
}

// Plan resolves the checkout and version without touching the registry.
func (p *ReleasePipeline) Plan(ctx context.Context) (*Report, error) {
	r := &Report{}
	err := p.plan(ctx, r)
	return r, err
}

func (p *ReleasePipeline) plan(ctx context.Context, r *Report) error {
	var checkout domain.Checkout
	err := p.step(ctx, r, StepCheckout, func(ctx context.Context) error {
		var err error
		checkout, err = p.checkout(ctx)
		return err
	})
	if err != nil {
		return err
	}

	return p.step(ctx, r, StepVersion, func(ctx context.Context) error {
		raw, err := p.readFile(filepath.Join(checkout.Dir, p.cfg.VersionFile))
		if err != nil {
			return fmt.Errorf("failed to read version file: %w", err)
		}
		version, err := domain.ParseVersion(string(raw))
		if err != nil {
			return err
		}
		r.Release = domain.Release{
			Repository: domain.Repository(p.cfg.Account, p.cfg.ImageName),
			Version:    version,
			Branch:     checkout.Branch,
			Commit:     checkout.Commit,
		}
		p.cfg.ContextDir = checkout.Dir
		return nil
	})
}

func (p *ReleasePipeline) checkout(ctx context.Context) (domain.Checkout, error) {
	var (
		co  domain.Checkout
		err error
	)
	if p.cfg.RepoURL != "" {
		dir, derr := os.MkdirTemp("", "shiporbit-release-")
		if derr != nil {
			return co, fmt.Errorf("failed to create clone dir: %w", derr)
		}
		p.cloneDir = dir
		co, err = p.source.Clone(ctx, p.cfg.RepoURL, p.cfg.Branch, dir)
	} else {
		co, err = p.source.Open(ctx, p.cfg.ContextDir)
	}
	if err != nil {
		return co, err
	}

	if co.Branch == "" {
		co.Branch = p.cfg.BranchOverride
	}
	if co.Branch == "" {
		return co, fmt.Errorf("detached HEAD at %s and no branch name supplied", short(co.Commit))
	}
	if co.Branch != p.cfg.Branch {
		log.WithFields(log.Fields{"branch": co.Branch, "release_branch": p.cfg.Branch}).Info("branch does not trigger a release")
		return co, domain.ErrBranchNotTriggered
	}
	return co, nil
}

// Run executes the whole pipeline. It stops at the first failing step; a
// checkout of a non-release branch stops it with domain.ErrBranchNotTriggered.
func (p *ReleasePipeline) Run(ctx context.Context) (*Report, error) {
	r := &Report{}
	if err := p.plan(ctx, r); err != nil {
		return r, err
	}
	if p.cfg.DryRun {
		log.WithField("tags", r.Release.Tags()).Info("dry run, nothing built")
		return r, nil
	}
	rel := r.Release
	tags := rel.Tags()

	if err := p.step(ctx, r, StepLogin, func(ctx context.Context) error {
		return p.builder.Login(ctx, p.cfg.Credentials)
	}); err != nil {
		return r, err
	}

	if err := p.step(ctx, r, StepBuild, func(ctx context.Context) error {
		id, err := p.builder.Build(ctx, domain.BuildRequest{
			ContextDir: p.cfg.ContextDir,
			Dockerfile: p.cfg.Dockerfile,
			Tags:       tags,
			Labels: map[string]string{
				"org.opencontainers.image.version":  rel.Version,
				"org.opencontainers.image.revision": rel.Commit,
			},
		})
		r.ImageID = id
		return err
	}); err != nil {
		return r, err
	}

	if p.cfg.Smoke {
		if err := p.step(ctx, r, StepSmoke, func(ctx context.Context) error {
			return p.smoke(ctx, tags[0])
		}); err != nil {
			return r, err
		}
	}

	if err := p.step(ctx, r, StepPush, func(ctx context.Context) error {
		for _, ref := range tags {
			if err := p.builder.Push(ctx, ref); err != nil {
				return fmt.Errorf("failed to push %s: %w", ref, err)
			}
		}
		return nil
	}); err != nil {
		return r, err
	}

	err := p.step(ctx, r, StepDeploy, func(ctx context.Context) error {
		status, err := p.hook.Trigger(ctx)
		r.HookStatus = status
		if err == nil {
			log.WithField("status", status).Info("deploy hook answered")
		}
		return err
	})
	return r, err
}

// smoke starts the image on a throwaway sqlite database and waits until its
// health endpoint answers.
func (p *ReleasePipeline) smoke(ctx context.Context, ref string) error {
	if p.containers == nil {
		return errors.New("smoke test requested without a container runtime")
	}
	c, err := p.containers.RunImage(ctx, ref, domain.AppPort, p.cfg.SmokeHostPort, domain.SmokeEnv)
	if err != nil {
		return err
	}
	defer func() {
		// The pipeline context may already be cancelled.
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := p.containers.StopContainer(stopCtx, c.ID); err != nil {
			log.WithFields(log.Fields{"container": c.ID, "error": err}).Warn("failed to stop smoke container")
		}
	}()

	url := "http://" + net.JoinHostPort("127.0.0.1", c.HostPort) + domain.HealthPath
	waitErr := p.waitForHealth(ctx, url)
	if waitErr != nil {
		p.dumpLogs(ctx, c.ID)
	}
	return waitErr
}

func (p *ReleasePipeline) waitForHealth(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.SmokeTimeout)
	defer cancel()

	boff := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 2 * time.Second, Factor: 2}
	for {
		err := p.healthy(ctx, url)
		if err == nil {
			log.WithField("url", url).Info("smoke container is healthy")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("container never became healthy at %s: %w", url, err)
		case <-time.After(boff.Duration()):
		}
	}
}

func (p *ReleasePipeline) dumpLogs(ctx context.Context, id string) {
	rc, err := p.containers.GetContainerLogs(ctx, id)
	if err != nil {
		log.WithField("error", err).Warn("no smoke container logs")
		return
	}
	defer rc.Close()
	out, _ := io.ReadAll(io.LimitReader(rc, 64<<10))
	log.WithField("container", id).Errorf("smoke container logs:\n%s", out)
}

// checkHealth wants a 200 answer with body "ok". docker-proxy accepts TCP
// connections for a container that is not listening.
func checkHealth(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64))
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "ok" {
		return fmt.Errorf("health check answered %d %q", resp.StatusCode, body)
	}
	return nil
}

func short(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
