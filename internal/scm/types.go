package scm

import "gantry/internal/run"

// Notifier publishes the pipeline run status to an external SCM so the
// commit that triggered the run reflects its outcome. Implementations are
// provider-specific (GitLab today); publishing is best effort and never
// changes run control flow.
type Notifier interface {
	// Publish reports the current run status for the configured commit.
	Publish(pipelineName string, status run.Status) error
}
