package intake

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// cloneOptions builds the shallow single-branch clone options. An empty
// branch leaves the reference unset so the remote default branch is used.
func cloneOptions(repoURL, branch string) *git.CloneOptions {
	opts := &git.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		SingleBranch: true,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}
	return opts
}

// FetchRepository clones a Git repository (depth 1) and packages its work
// tree into a zip archive ready for submission. An empty branch clones
// the remote default branch. The caller owns the returned archive.
func FetchRepository(ctx context.Context, repoURL, branch string) (archive string, err error) {
	clone, err := os.MkdirTemp(os.TempDir(), "guard-clone-*")
	if err != nil {
		return
	}
	defer func() {
		if e := os.RemoveAll(clone); e != nil {
			logger.Warn("could not remove clone folder", slog.String("folder", clone), slog.String("error", e.Error()))
		}
	}()

	if _, err = git.PlainCloneContext(ctx, clone, false, cloneOptions(repoURL, branch)); err != nil {
		err = fmt.Errorf("could not clone %s: %w", repoURL, err)
		return
	}

	archive, err = PackDir(clone)
	return
}
