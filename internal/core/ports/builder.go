package ports

import (
	"context"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

// ImageBuilder defines operations for building and publishing container images.
type ImageBuilder interface {
	// Login authenticates against the registry that later receives the pushes.
	Login(ctx context.Context, creds domain.RegistryCredentials) error
	// Build builds an image from a local context, applying every tag of req.
	// It returns the ID of the built image or an error.
	Build(ctx context.Context, req domain.BuildRequest) (string, error)
	// Push uploads one tagged reference.
	Push(ctx context.Context, ref string) error
}

// SourceRepository resolves the source tree of a release.
type SourceRepository interface {
	// Open inspects an existing working tree.
	Open(ctx context.Context, dir string) (domain.Checkout, error)
	// Clone fetches branch of repoURL shallowly into dir.
	Clone(ctx context.Context, repoURL, branch, dir string) (domain.Checkout, error)
}

// DeployHook asks the hosting platform to roll out the latest image.
type DeployHook interface {
	// Trigger calls the hook once and returns the HTTP status it answered with.
	Trigger(ctx context.Context) (int, error)
}
