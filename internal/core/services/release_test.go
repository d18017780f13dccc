package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

type releaseFixture struct {
	source     *fakeSource
	builder    *fakeBuilder
	containers *fakeContainers
	hook       *fakeHook
	checked    []string
}

func newReleaseFixture() *releaseFixture {
	return &releaseFixture{
		source:     &fakeSource{checkout: domain.Checkout{Branch: "main", Commit: "0123456789abcdef"}},
		builder:    &fakeBuilder{},
		containers: &fakeContainers{},
		hook:       &fakeHook{status: 200},
	}
}

func (f *releaseFixture) pipeline(cfg ReleaseConfig, version string) *ReleasePipeline {
	if cfg.Account == "" {
		cfg.Account = "shiporbit"
	}
	if cfg.ImageName == "" {
		cfg.ImageName = "api"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.VersionFile == "" {
		cfg.VersionFile = "VERSION"
	}
	if cfg.ContextDir == "" {
		cfg.ContextDir = "/src"
	}
	cfg.Credentials = domain.RegistryCredentials{Username: "ci", Password: "secret"}

	p := NewReleasePipeline(f.source, f.builder, f.containers, f.hook, cfg)
	p.readFile = func(path string) ([]byte, error) {
		if version == "" {
			return nil, os.ErrNotExist
		}
		return []byte(version), nil
	}
	p.healthy = func(_ context.Context, url string) error {
		f.checked = append(f.checked, url)
		return nil
	}
	return p
}

func steps(r *Report) []string {
	var out []string
	for _, s := range r.Steps {
		out = append(out, s.Step)
	}
	return out
}

func TestReleasePushesBothTagsAndDeploysOnce(t *testing.T) {
	f := newReleaseFixture()
	r, err := f.pipeline(ReleaseConfig{}, "1.4.2\n").Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"login ci", "build", "push shiporbit/api:latest", "push shiporbit/api:1.4.2"}, f.builder.calls)
	assert.Equal(t, []string{"shiporbit/api:latest", "shiporbit/api:1.4.2"}, f.builder.built.Tags)
	assert.Equal(t, "1.4.2", f.builder.built.Labels["org.opencontainers.image.version"])
	assert.Equal(t, "/src", f.builder.built.ContextDir)
	assert.Equal(t, 1, f.hook.calls)
	assert.Equal(t, 200, r.HookStatus)
	assert.Equal(t, "sha256:abc", r.ImageID)
	assert.Equal(t, []string{StepCheckout, StepVersion, StepLogin, StepBuild, StepPush, StepDeploy}, steps(r))
	assert.Nil(t, r.Failed())
}

func TestReleaseStopsAtFirstFailure(t *testing.T) {
	f := newReleaseFixture()
	f.builder.buildErr = errors.New("COPY failed: no such file")

	r, err := f.pipeline(ReleaseConfig{}, "1.4.2").Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build: COPY failed")
	assert.Empty(t, f.builder.pushed)
	assert.Zero(t, f.hook.calls)
	require.NotNil(t, r.Failed())
	assert.Equal(t, StepBuild, r.Failed().Step)
}

func TestReleasePushFailureSkipsDeploy(t *testing.T) {
	f := newReleaseFixture()
	f.builder.pushErr = errors.New("denied: requested access to the resource is denied")

	_, err := f.pipeline(ReleaseConfig{}, "1.4.2").Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"login ci", "build", "push shiporbit/api:latest"}, f.builder.calls)
	assert.Zero(t, f.hook.calls)
}

func TestReleaseIgnoresOtherBranches(t *testing.T) {
	f := newReleaseFixture()
	f.source.checkout.Branch = "feature/quotes"

	r, err := f.pipeline(ReleaseConfig{}, "1.4.2").Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrBranchNotTriggered)
	assert.Empty(t, f.builder.calls)
	assert.Zero(t, f.hook.calls)
	assert.Equal(t, []string{StepCheckout}, steps(r))
}

func TestReleaseDetachedHead(t *testing.T) {
	f := newReleaseFixture()
	f.source.checkout.Branch = ""

	_, err := f.pipeline(ReleaseConfig{}, "1.4.2").Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detached HEAD at 0123456")

	_, err = f.pipeline(ReleaseConfig{BranchOverride: "main"}, "1.4.2").Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.builder.pushed, 2)
}

func TestReleaseVersionProblems(t *testing.T) {
	for name, version := range map[string]string{
		"missing": "",
		"blank":   "  \n",
		"latest":  "latest",
		"spaces":  "1.0 beta",
	} {
		t.Run(name, func(t *testing.T) {
			f := newReleaseFixture()
			r, err := f.pipeline(ReleaseConfig{}, version).Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, StepVersion, r.Failed().Step)
			assert.Empty(t, f.builder.calls)
		})
	}
}

func TestReleaseDryRunBuildsNothing(t *testing.T) {
	f := newReleaseFixture()
	r, err := f.pipeline(ReleaseConfig{DryRun: true}, "2.0.0").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"shiporbit/api:latest", "shiporbit/api:2.0.0"}, r.Release.Tags())
	assert.Equal(t, "0123456789abcdef", r.Release.Commit)
	assert.Empty(t, f.builder.calls)
	assert.Zero(t, f.hook.calls)
}

func TestReleaseClonesRepo(t *testing.T) {
	f := newReleaseFixture()
	p := f.pipeline(ReleaseConfig{RepoURL: "https://github.com/shiporbit/shiporbit.git"}, "1.0.0")
	t.Cleanup(func() { _ = p.Cleanup() })

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/shiporbit/shiporbit.git", f.source.cloned)
	assert.NotEqual(t, "/src", f.builder.built.ContextDir)
	assert.DirExists(t, f.builder.built.ContextDir)

	require.NoError(t, p.Cleanup())
	assert.NoDirExists(t, f.builder.built.ContextDir)
}

func TestReleaseSmoke(t *testing.T) {
	f := newReleaseFixture()
	_, err := f.pipeline(ReleaseConfig{Smoke: true}, "1.0.0").Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shiporbit/api:latest", f.containers.ran)
	assert.Equal(t, []string{"DATABASE_DRIVER=sqlite", "SQLITE_PATH=/tmp/smoke.db"}, f.containers.env)
	assert.Equal(t, []string{"http://127.0.0.1:8000/healthz"}, f.checked)
	assert.Equal(t, "c1", f.containers.stopped)
	assert.Len(t, f.builder.pushed, 2)
}

func TestReleaseSmokeFailureBlocksPush(t *testing.T) {
	f := newReleaseFixture()
	p := f.pipeline(ReleaseConfig{Smoke: true, SmokeTimeout: 300 * time.Millisecond}, "1.0.0")
	p.healthy = func(context.Context, string) error { return errors.New("connection reset by peer") }

	r, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StepSmoke, r.Failed().Step)
	assert.Equal(t, "c1", f.containers.stopped, "the smoke container is stopped")
	assert.Empty(t, f.builder.pushed)
	assert.Zero(t, f.hook.calls)
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK, body: "ok"},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: "ok", wantErr: true},
		{name: "wrong body", status: http.StatusOK, body: "<html>", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/healthz", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := checkHealth(context.Background(), srv.URL+"/healthz")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckHealthNothingListening(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/healthz"
	srv.Close()
	assert.Error(t, checkHealth(context.Background(), url))
}
