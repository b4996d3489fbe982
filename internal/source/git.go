package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Cloner prepares the pipeline working tree from a source repository.
type Cloner interface {
	Clone(ctx context.Context, url, ref, dest string) error
}

// GitCloner clones over HTTPS. A token, when present in the environment,
// is passed as basic auth so private repositories work; public clones need
// no credentials.
type GitCloner struct {
	token string
}

// NewGitCloner creates a cloner, picking up GANTRY_GIT_TOKEN or
// GITLAB_PRIVATE_TOKEN for authenticated clones.
func NewGitCloner() *GitCloner {
	token := os.Getenv("GANTRY_GIT_TOKEN")
	if token == "" {
		token = os.Getenv("GITLAB_PRIVATE_TOKEN")
	}
	return &GitCloner{token: token}
}

// Clone clones url at ref into dest. An existing clone at dest is left in
// place so a resumed run does not re-fetch the working tree.
func (c *GitCloner) Clone(ctx context.Context, url, ref, dest string) error {
	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		slog.Info("Working tree already present, skipping clone", "dest", dest)
		return nil
	}

	if err := os.MkdirAll(dest, 0750); err != nil {
		return fmt.Errorf("failed to create checkout directory: %w", err)
	}

	opts := &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
	}
	if ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	}
	if c.token != "" {
		opts.Auth = &http.BasicAuth{
			Username: "oauth2",
			Password: c.token,
		}
	}

	slog.Info("Cloning source repository", "url", url, "ref", ref, "dest", dest)
	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}

	slog.Info("Source repository cloned", "url", url, "dest", dest)
	return nil
}
