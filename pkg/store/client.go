package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrConflict is returned by Update when another writer changed the record
// between the read and the write. The caller decides whether to try again.
var ErrConflict = errors.New("concurrent update")

// Client provides project-scoped access to the store.
// All keys and channels are automatically namespaced with the project identifier.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb     *redis.Client
	project string
	keys    *KeyGenerator
}

// NewClient creates a new store client for the specified project.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - project: project identifier used to namespace keys (must not be empty)
//
// Returns an error if project is empty.
func NewClient(redisOpts *redis.Options, project string) (*Client, error) {
	if project == "" {
		return nil, fmt.Errorf("project identifier cannot be empty: %w", ErrInvalidPath)
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		project: project,
		keys:    NewKeyGenerator(),
	}, nil
}

// Project returns the project identifier the client is scoped to.
func (c *Client) Project() string {
	return c.project
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GenerateKey mints a new child id without contacting Redis.
func (c *Client) GenerateKey() string {
	return c.keys.New()
}

// Get reads the current state of a path.
// A path that was never written (or was deleted) yields Exists == false.
func (c *Client) Get(ctx context.Context, path string) (Snapshot, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Snapshot{}, err
	}
	return c.get(ctx, p)
}

func (c *Client) get(ctx context.Context, p Path) (Snapshot, error) {
	key := NodeKey(c.project, p.Root)

	if p.IsRoot() {
		hash, err := c.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to read %s from Redis: %w", p, err)
		}
		// HGetAll returns an empty map for non-existent keys
		if len(hash) == 0 {
			return missing(p.String()), nil
		}
		value, err := HashToJSON(hash)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to assemble %s: %w", p, err)
		}
		return Snapshot{Path: p.String(), Exists: true, Value: value}, nil
	}

	raw, err := c.rdb.HGet(ctx, key, p.Child).Result()
	if errors.Is(err, redis.Nil) {
		return missing(p.String()), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read %s from Redis: %w", p, err)
	}
	return Snapshot{Path: p.String(), Exists: true, Value: []byte(raw)}, nil
}

// Set replaces the value at a path and publishes a change.
// Root values must encode to a JSON object; its members become the root's
// children and any other children are removed in the same transaction.
func (c *Client) Set(ctx context.Context, path string, value any) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	change, err := c.changePayload(p, OpSet)
	if err != nil {
		return err
	}
	key := NodeKey(c.project, p.Root)
	channel := ChangesChannel(c.project, p.Root)

	if p.IsRoot() {
		hash, err := ValueToHash(value)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
		_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(hash) > 0 {
				pipe.HSet(ctx, key, hash)
			}
			pipe.Publish(ctx, channel, change)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write %s to Redis: %w", p, err)
		}
		return nil
	}

	encoded, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, p.Child, encoded)
		pipe.Publish(ctx, channel, change)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s to Redis: %w", p, err)
	}
	return nil
}

// Update merges top-level fields into the value at a path.
// On a root the fields are children; on a child they are members of the
// child's JSON object. A child update is guarded by WATCH and returns
// ErrConflict if another writer got there first.
func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	change, err := c.changePayload(p, OpUpdate)
	if err != nil {
		return err
	}
	key := NodeKey(c.project, p.Root)
	channel := ChangesChannel(c.project, p.Root)

	if p.IsRoot() {
		hash := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			encoded, err := encodeValue(v)
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", p, err)
			}
			hash[k] = encoded
		}
		_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hash)
			pipe.Publish(ctx, channel, change)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to update %s in Redis: %w", p, err)
		}
		return nil
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, p.Child).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		merged, err := mergeFields(current, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, p.Child, merged)
			pipe.Publish(ctx, channel, change)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("failed to update %s: %w", p, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", p, err)
	}
	return nil
}

// Delete removes the value at a path and publishes a change.
// Deleting a missing path is not an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	change, err := c.changePayload(p, OpDelete)
	if err != nil {
		return err
	}
	key := NodeKey(c.project, p.Root)
	channel := ChangesChannel(c.project, p.Root)

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if p.IsRoot() {
			pipe.Del(ctx, key)
		} else {
			pipe.HDel(ctx, key, p.Child)
		}
		pipe.Publish(ctx, channel, change)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from Redis: %w", p, err)
	}
	return nil
}

// Push stores value under a freshly generated child of root and returns the id.
func (c *Client) Push(ctx context.Context, root string, value any) (string, error) {
	p, err := ParsePath(root)
	if err != nil {
		return "", err
	}
	if !p.IsRoot() {
		return "", fmt.Errorf("%w: push target %q must be a root", ErrInvalidPath, root)
	}

	id := c.GenerateKey()
	if err := c.Set(ctx, Join(p.Root, id), value); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) changePayload(p Path, op Op) (string, error) {
	data, err := codec.Marshal(Change{Path: p.String(), Op: op})
	if err != nil {
		return "", fmt.Errorf("failed to marshal change event: %w", err)
	}
	return string(data), nil
}
