package jobs

import (
	"encoding/json"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueCritical carries per-user setup work a new account is waiting on.
	QueueCritical = "critical"
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInitStatusCollections creates the five status collections of a new user.
	TaskInitStatusCollections = "collections:init_status"
	// TaskCleanupStatusCollections re-syncs status collections with game statuses.
	TaskCleanupStatusCollections = "collections:cleanup_status"
)

// Queues lists the worker queues with their relative priority.
var Queues = []struct {
	Name     string
	Priority int
}{
	{QueueCritical, 6},
	{QueueDefault, 3},
}

// RedisOpt accepts either a host:port address or a redis:// URI.
func RedisOpt(addr string) (asynq.RedisConnOpt, error) {
	if strings.Contains(addr, "://") {
		return asynq.ParseRedisURI(addr)
	}
	return asynq.RedisClientOpt{Addr: addr}, nil
}

// InitStatusPayload names the user whose status collections are created.
type InitStatusPayload struct {
	UserID string `json:"user_id"`
}

// CleanupStatusPayload optionally narrows cleanup to one user.
type CleanupStatusPayload struct {
	UserID string `json:"user_id,omitempty"`
}

// NewInitStatusTask constructs a TaskInitStatusCollections task.
func NewInitStatusTask(userID string) (*asynq.Task, error) {
	data, err := json.Marshal(InitStatusPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInitStatusCollections, data, asynq.MaxRetry(5)), nil
}

// NewCleanupStatusTask constructs a TaskCleanupStatusCollections task.
func NewCleanupStatusTask(userID string) (*asynq.Task, error) {
	data, err := json.Marshal(CleanupStatusPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCleanupStatusCollections, data), nil
}
