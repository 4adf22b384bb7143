package invalidate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gramy/gramy/internal/observability"
)

const (
	versionKeyPrefix = "view:version:"
	// Channel carries invalidated paths to subscribers.
	Channel = "view.invalidate"
)

// VersionStore tracks a monotonically increasing version per path.
type VersionStore interface {
	Bump(ctx context.Context, path Path) error
	Version(ctx context.Context, path Path) (int64, error)
}

// RedisVersionStore keeps path versions in Redis and announces bumps.
type RedisVersionStore struct {
	client redis.UniversalClient
}

// NewRedisVersionStore constructs a RedisVersionStore.
func NewRedisVersionStore(client redis.UniversalClient) *RedisVersionStore {
	return &RedisVersionStore{client: client}
}

// Bump increments the path version and publishes the path.
func (s *RedisVersionStore) Bump(ctx context.Context, path Path) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKeyPrefix+string(path))
		pipe.Publish(ctx, Channel, string(path))
		return nil
	})
	return err
}

// Version returns the current version, zero when never bumped.
func (s *RedisVersionStore) Version(ctx context.Context, path Path) (int64, error) {
	v, err := s.client.Get(ctx, versionKeyPrefix+string(path)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Subscribe relays invalidated paths until ctx ends.
func (s *RedisVersionStore) Subscribe(ctx context.Context, fn func(Path)) {
	pubsub := s.client.Subscribe(ctx, Channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fn(Path(msg.Payload))
			}
		}
	}()
}

// Dispatcher marks paths stale. Failures are logged and counted, never returned.
type Dispatcher struct {
	store   VersionStore
	logger  *slog.Logger
	metrics *observability.Metrics
	timeout time.Duration
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store VersionStore, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{store: store, logger: logger, metrics: metrics, timeout: 2 * time.Second}
}

// Invalidate bumps every distinct path once.
func (d *Dispatcher) Invalidate(ctx context.Context, paths ...Path) {
	if d == nil || d.store == nil {
		return
	}
	set := NewSet(paths...)
	if set.Len() == 0 {
		return
	}
	// The mutation already committed; a cancelled request must not skip invalidation.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	for _, path := range set.Paths() {
		err := d.store.Bump(ctx, path)
		d.metrics.ObserveInvalidation(path.Kind(), err)
		if err != nil {
			d.logger.Warn("invalidate path", slog.String("path", string(path)), slog.Any("error", err))
			continue
		}
		d.logger.Debug("invalidate path", slog.String("path", string(path)))
	}
}
