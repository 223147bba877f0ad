// Package cron schedules recurring maintenance work for the daemon,
// currently tool readiness refresh and invocation-log pruning.
package cron

import "context"

// Job is one recurring task. The scheduler keys jobs by Name, fires them
// on their Schedule, and never runs two ticks of the same job at once.
type Job interface {
	// Name identifies the job in logs and metrics. Registering the same
	// name twice fails.
	Name() string

	// Schedule is a five-field cron expression such as "0 3 * * *".
	Schedule() string

	// Run performs one tick of work. ctx is cancelled when the scheduler
	// stops, and long-running jobs should honor it.
	Run(ctx context.Context) error
}
