package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"checkout-service/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

//go:embed scripts/consume_path.lua
var consumePathScript string

//go:embed scripts/add_line.lua
var addLineScript string

// Client persists per-session carts and redirect paths in Redis and
// serializes cross-replica cart mutations with SetNX locks.
type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	consumeScript *redis.Script
	addScript     *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		consumeScript: redis.NewScript(consumePathScript),
		addScript:     redis.NewScript(addLineScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

// lineField identifies one cart line inside the session hash.
func lineField(id int64, size string) string {
	return fmt.Sprintf("%d|%s", id, size)
}

// cartLine is the stored form of one hash field. Pos preserves insertion
// order across loads; Redis hashes do not.
type cartLine struct {
	models.CartItem
	Pos int `json:"pos"`
}

// LoadCart retrieves the persisted cart lines for a session in insertion
// order. A missing key means an empty cart.
func (c *Client) LoadCart(ctx context.Context, sessionID string) ([]models.CartItem, error) {
	raw, err := c.rdb.HGetAll(ctx, cartKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	lines := make([]cartLine, 0, len(raw))
	for _, v := range raw {
		var line cartLine
		if err := json.Unmarshal([]byte(v), &line); err != nil {
			return nil, fmt.Errorf("failed to decode cart line: %w", err)
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Pos < lines[j].Pos })

	items := make([]models.CartItem, len(lines))
	for i, line := range lines {
		items[i] = line.CartItem
	}
	return items, nil
}

// AddLine atomically merges one line into the session cart: an existing
// (id, size) field has its quantity incremented, a new field is appended
// with quantity 1. The TTL is refreshed either way.
func (c *Client) AddLine(ctx context.Context, sessionID string, item models.CartItem, ttl time.Duration) error {
	item.Quantity = 1
	raw, err := json.Marshal(cartLine{CartItem: item})
	if err != nil {
		return fmt.Errorf("failed to encode cart line: %w", err)
	}
	if err := c.addScript.Run(ctx, c.rdb, []string{cartKey(sessionID)},
		lineField(item.ID, item.Size), raw, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("add line script failed: %w", err)
	}
	return nil
}

// SaveCart rewrites the cart lines for a session with a TTL bounding the
// browsing session. An empty cart deletes the key.
func (c *Client) SaveCart(ctx context.Context, sessionID string, items []models.CartItem, ttl time.Duration) error {
	if len(items) == 0 {
		return c.DeleteCart(ctx, sessionID)
	}

	key := cartKey(sessionID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		for i, item := range items {
			raw, err := json.Marshal(cartLine{CartItem: item, Pos: i})
			if err != nil {
				return fmt.Errorf("failed to encode cart line: %w", err)
			}
			pipe.HSet(ctx, key, lineField(item.ID, item.Size), raw)
		}
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

// DeleteCart removes the persisted cart for a session
func (c *Client) DeleteCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, cartKey(sessionID)).Err()
}

// AcquireSessionLock takes a short lock serializing mutations of one
// session's cart. Returns the lock token on success, empty on contention.
func (c *Client) AcquireSessionLock(ctx context.Context, sessionID string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:cart:%s", sessionID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseSessionLock releases the lock if it still holds the token.
func (c *Client) ReleaseSessionLock(ctx context.Context, sessionID, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb,
		[]string{fmt.Sprintf("lock:cart:%s", sessionID)}, token).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

func pathKey(sessionID string) string {
	return fmt.Sprintf("redirect:%s", sessionID)
}

// SavePath stores the attempted path for a session (recovery.PathStore).
func (c *Client) SavePath(ctx context.Context, sessionID, path string) error {
	return c.rdb.Set(ctx, pathKey(sessionID), path, 15*time.Minute).Err()
}

// ConsumePath atomically reads and discards the stored path.
func (c *Client) ConsumePath(ctx context.Context, sessionID string) (string, error) {
	result, err := c.consumeScript.Run(ctx, c.rdb, []string{pathKey(sessionID)}).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("consume path script failed: %w", err)
	}

	path, ok := result.(string)
	if !ok {
		return "", nil
	}
	return path, nil
}
