// Package git resolves the source tree of a release with go-git.
package git

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	log "github.com/sirupsen/logrus"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

// Source implements ports.SourceRepository.
type Source struct {
	// Progress receives clone progress; nil discards it.
	Progress io.Writer
}

func NewSource(progress io.Writer) *Source {
	return &Source{Progress: progress}
}

// Open inspects the working tree containing dir. A detached HEAD yields an empty Branch.
func (s *Source) Open(_ context.Context, dir string) (domain.Checkout, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return domain.Checkout{}, fmt.Errorf("failed to open repo at %s: %w", dir, err)
	}
	co, err := describe(repo)
	co.Dir = dir
	return co, err
}

// Clone fetches the tip of branch shallowly into dir.
func (s *Source) Clone(ctx context.Context, repoURL, branch, dir string) (domain.Checkout, error) {
	progress := s.Progress
	if progress == nil {
		progress = io.Discard
	}
	log.WithFields(log.Fields{"repo": repoURL, "branch": branch, "dir": dir}).Info("cloning")
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           repoURL,
		Progress:      progress,
		Depth:         1, // Shallow clone for speed
		SingleBranch:  true,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
	})
	if err != nil {
		return domain.Checkout{}, fmt.Errorf("failed to clone repo: %w", err)
	}
	co, err := describe(repo)
	co.Dir = dir
	return co, err
}

func describe(repo *git.Repository) (domain.Checkout, error) {
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return domain.Checkout{}, errors.New("repository has no commits")
	}
	if err != nil {
		return domain.Checkout{}, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	co := domain.Checkout{Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		co.Branch = head.Name().Short()
	}
	return co, nil
}
