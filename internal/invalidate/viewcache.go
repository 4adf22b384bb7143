package invalidate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	viewKeyPrefix = "view:cache:"
	// loadTimeout bounds a shared fill once it no longer follows any request.
	loadTimeout = 15 * time.Second
)

// ViewCache is a read-through JSON cache whose entries are keyed by the current
// version of a path, so Dispatcher.Invalidate makes the next read fresh.
type ViewCache struct {
	client   redis.UniversalClient
	versions VersionStore
	ttl      time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// NewViewCache constructs a ViewCache. A nil client disables caching.
func NewViewCache(client redis.UniversalClient, versions VersionStore, ttl time.Duration, logger *slog.Logger) *ViewCache {
	return &ViewCache{client: client, versions: versions, ttl: ttl, logger: logger}
}

func (c *ViewCache) key(ctx context.Context, path Path, key string) (string, error) {
	version, err := c.versions.Version(ctx, path)
	if err != nil {
		return "", err
	}
	return viewKeyPrefix + string(path) + ":v" + strconv.FormatInt(version, 10) + ":" + key, nil
}

// Fetch returns the cached value for (path, key) or fills it with loader.
// Redis failures degrade to calling loader directly.
func Fetch[T any](ctx context.Context, c *ViewCache, path Path, key string, loader func(context.Context) (T, error)) (T, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	cacheKey, err := c.key(ctx, path, key)
	if err != nil {
		c.logger.Warn("view cache version", slog.String("path", string(path)), slog.Any("error", err))
		return loader(ctx)
	}

	var out T
	payload, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == nil {
		if err := json.Unmarshal(payload, &out); err == nil {
			return out, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("view cache get", slog.String("key", cacheKey), slog.Any("error", err))
		return loader(ctx)
	}

	// Coalesced callers share this fill, so it must not die with the first
	// caller's request.
	ch := c.group.DoChan(cacheKey, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		value, err := loader(fillCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(fillCtx, cacheKey, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("view cache set", slog.String("key", cacheKey), slog.Any("error", err))
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return out, res.Err
		}
		if err := json.Unmarshal(res.Val.([]byte), &out); err != nil {
			return out, err
		}
		return out, nil
	}
}
