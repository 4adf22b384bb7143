package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/gramy/gramy/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address or URI.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts, err := jobs.RedisOpt(redisAddr)
	if err != nil {
		return nil, fmt.Errorf("jobs cli: %w", err)
	}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		err = errors.Join(err, c.inspector.Close())
	}
	if c.client != nil {
		err = errors.Join(err, c.client.Close())
	}
	return err
}

// Trigger enqueues a supported job by task type. userID narrows the
// status collection tasks to one user.
func (c *JobsCLI) Trigger(ctx context.Context, name, userID string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	queue := jobs.QueueDefault
	switch name {
	case jobs.TaskCleanupStatusCollections:
		task, err = jobs.NewCleanupStatusTask(userID)
	case jobs.TaskInitStatusCollections:
		if userID == "" {
			return nil, errors.New("jobs cli: --user is required for " + name)
		}
		task, err = jobs.NewInitStatusTask(userID)
		queue = jobs.QueueCritical
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueues reports counters for every worker queue. Queues that have
// never received a task report zeros.
func (c *JobsCLI) InspectQueues() ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	out := make([]QueueStats, 0, len(jobs.Queues))
	for _, q := range jobs.Queues {
		stats := QueueStats{Queue: q.Name}
		info, err := c.inspector.GetQueueInfo(q.Name)
		switch {
		case errors.Is(err, asynq.ErrQueueNotFound):
		case err != nil:
			return nil, err
		default:
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
		}
		out = append(out, stats)
	}
	return out, nil
}

func newJobsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	var userID string
	trigger := &cobra.Command{
		Use:   "trigger <task-type>",
		Short: "Enqueue " + jobs.TaskCleanupStatusCollections + " or " + jobs.TaskInitStatusCollections,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jc, err := NewJobsCLI(opts.RedisAddr)
			if err != nil {
				return err
			}
			defer jc.Close()
			info, err := jc.Trigger(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s\n", info.Type, info.ID)
			return nil
		},
	}
	trigger.Flags().StringVar(&userID, "user", "", "limit the task to one user id")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jc, err := NewJobsCLI(opts.RedisAddr)
			if err != nil {
				return err
			}
			defer jc.Close()
			all, err := jc.InspectQueues()
			if err != nil {
				return err
			}
			for _, s := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
			}
			return nil
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}
