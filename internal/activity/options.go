package activity

import (
	"time"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
)

// DefaultOptions returns the retry policy for a job kind.
func DefaultOptions(kind model.JobKind) queue.Options {
	switch kind {
	case model.JobCreateDatabase, model.JobDestroyResource, model.JobSyncPlugins:
		return queue.Options{Attempts: 3, Backoff: queue.Backoff{Type: queue.BackoffExponential, Delay: 5 * time.Second}}
	case model.JobDeployApp, model.JobDeployDocker:
		return queue.Options{Attempts: 2, Backoff: queue.Backoff{Type: queue.BackoffFixed, Delay: 10 * time.Second}}
	case model.JobUpdateEnvironment, model.JobUpdateVolumes, model.JobExposePort:
		return queue.Options{Attempts: 3, Backoff: queue.Backoff{Type: queue.BackoffFixed, Delay: 5 * time.Second}}
	case model.JobBackupDatabase:
		return queue.Options{Attempts: 2, Backoff: queue.Backoff{Type: queue.BackoffExponential, Delay: 30 * time.Second}}
	default:
		return queue.Options{Attempts: 1}
	}
}
