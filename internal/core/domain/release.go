package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// LatestTag is always built and pushed next to the version tag.
const LatestTag = "latest"

// AppPort is the port the API listens on inside the image.
const AppPort = "8000"

// HealthPath answers 200 "ok" once the API serves requests.
const HealthPath = "/healthz"

// SmokeEnv lets the image boot without an external database.
var SmokeEnv = []string{"DATABASE_DRIVER=sqlite", "SQLITE_PATH=/tmp/smoke.db"}

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

// ErrBranchNotTriggered stops the pipeline when the checkout is not the release branch.
var ErrBranchNotTriggered = errors.New("branch does not trigger a release")

// Checkout describes the source tree being released.
type Checkout struct {
	Dir    string
	Branch string
	Commit string
}

// Release is the plan computed before anything is built.
type Release struct {
	Repository string
	Version    string
	Branch     string
	Commit     string
}

// Reference joins a repository and a tag.
func Reference(repository, tag string) string {
	return repository + ":" + tag
}

// Repository is the registry namespace (account) plus image name.
func Repository(account, image string) string {
	return account + "/" + image
}

// Tags returns exactly the two references of a release, latest first.
func (r Release) Tags() []string {
	return []string{
		Reference(r.Repository, LatestTag),
		Reference(r.Repository, r.Version),
	}
}

// ParseVersion trims the raw content of a version file and checks it is usable as a tag.
func ParseVersion(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", errors.New("version file is empty")
	}
	if v == LatestTag {
		return "", fmt.Errorf("version %q collides with the %s tag", v, LatestTag)
	}
	if !tagPattern.MatchString(v) {
		return "", fmt.Errorf("version %q is not a valid image tag", v)
	}
	return v, nil
}

// RegistryCredentials authenticate pushes.
type RegistryCredentials struct {
	Username      string
	Password      string
	ServerAddress string
}

// BuildRequest describes one image build.
type BuildRequest struct {
	ContextDir string
	Dockerfile string
	Tags       []string
	Labels     map[string]string
}
