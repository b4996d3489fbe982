package scm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	gitlab "github.com/xanzy/go-gitlab"

	"gantry/internal/run"
	"gantry/pkg/pipeline"
)

// GitLabNotifier implements the Notifier interface by setting a commit
// status on the configured project/SHA.
type GitLabNotifier struct {
	client  *gitlab.Client
	project string
	sha     string
}

// NewGitLabNotifier creates a notifier authenticated from the environment.
func NewGitLabNotifier(cfg *pipeline.Notify) (*GitLabNotifier, error) {
	token := os.Getenv("GITLAB_PRIVATE_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GITLAB_PRIVATE_TOKEN environment variable is required")
	}

	baseURL := strings.TrimSuffix(cfg.URL, "/") + "/api/v4"
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &GitLabNotifier{
		client:  client,
		project: cfg.Project,
		sha:     cfg.SHA,
	}, nil
}

// Publish sets the commit status for the configured SHA to mirror the run.
func (g *GitLabNotifier) Publish(pipelineName string, status run.Status) error {
	state := buildState(status)

	slog.Info("Publishing commit status", "project", g.project, "sha", g.sha, "state", state)

	opts := &gitlab.SetCommitStatusOptions{
		State:       state,
		Name:        gitlab.String(fmt.Sprintf("gantry/%s", pipelineName)),
		Description: gitlab.String(fmt.Sprintf("pipeline run %s", status)),
	}

	if _, _, err := g.client.Commits.SetCommitStatus(g.project, g.sha, opts); err != nil {
		return fmt.Errorf("failed to set commit status on %s@%s: %w", g.project, g.sha, err)
	}

	return nil
}

// buildState maps a run status onto the GitLab commit status vocabulary.
func buildState(status run.Status) gitlab.BuildStateValue {
	switch status {
	case run.RunCompleted:
		return gitlab.Success
	case run.RunAborted:
		return gitlab.Failed
	default:
		return gitlab.Running
	}
}
