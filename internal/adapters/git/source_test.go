package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with one commit on branch.
func initRepo(t *testing.T, branch string) (string, plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"), []byte("1.0.0\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("VERSION")
	require.NoError(t, err)
	hash, err := wt.Commit("first", &git.CommitOptions{
		Author: &object.Signature{Name: "ci", Email: "ci@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)
	return dir, hash
}

func TestOpenResolvesBranchAndCommit(t *testing.T) {
	dir, hash := initRepo(t, "main")
	sub := filepath.Join(dir, "cmd")
	require.NoError(t, os.Mkdir(sub, 0o755))

	co, err := NewSource(nil).Open(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "main", co.Branch)
	assert.Equal(t, hash.String(), co.Commit)
	assert.Equal(t, sub, co.Dir)
}

func TestOpenDetachedHead(t *testing.T) {
	dir, hash := initRepo(t, "main")
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Hash: hash}))

	co, err := NewSource(nil).Open(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, co.Branch)
	assert.Equal(t, hash.String(), co.Commit)
}

func TestOpenNotARepo(t *testing.T) {
	_, err := NewSource(nil).Open(context.Background(), t.TempDir())
	assert.Error(t, err)
}
