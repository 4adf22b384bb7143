package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
)

// Client enqueues Gramy background work.
type Client struct {
	client *asynq.Client
}

func NewClient(redisOpts asynq.RedisConnOpt) (*Client, error) {
	if redisOpts == nil {
		return nil, errors.New("jobs: redis connection required")
	}
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueInitStatusCollections schedules creation of a new user's status
// collections. Retries of the same user collapse into one task.
func (c *Client) EnqueueInitStatusCollections(ctx context.Context, userID string) error {
	task, err := NewInitStatusTask(userID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueCritical), asynq.TaskID("init_status:"+userID))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueCleanupStatusCollections schedules an immediate cleanup run,
// narrowed to userID when set.
func (c *Client) EnqueueCleanupStatusCollections(ctx context.Context, userID string) (*asynq.TaskInfo, error) {
	task, err := NewCleanupStatusTask(userID)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

func (c *Client) Close() error {
	return c.client.Close()
}
