package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the shared alias cache.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Config holds Redis connection configuration. An empty URL disables Redis.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "breadwatch"
	}
	return &Client{rdb: rdb, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// negativeAlias marks an address known to have no alias.
const negativeAlias = "-"

func aliasKey(prefix, address string) string {
	return fmt.Sprintf("%s:alias:%s", prefix, strings.ToLower(address))
}

func encodeAlias(alias string) string {
	if alias == "" {
		return negativeAlias
	}
	return alias
}

func decodeAlias(v string) string {
	if v == negativeAlias {
		return ""
	}
	return v
}

// GetAlias returns the cached alias of address. found is false on a cache
// miss; an empty alias with found true is a cached "no alias".
func (c *Client) GetAlias(ctx context.Context, address string) (alias string, found bool, err error) {
	val, err := c.rdb.Get(ctx, aliasKey(c.prefix, address)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get failed: %w", err)
	}
	return decodeAlias(val), true, nil
}

// SetAlias caches the alias of address for ttl. An empty alias is cached as
// a negative result.
func (c *Client) SetAlias(ctx context.Context, address, alias string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, aliasKey(c.prefix, address), encodeAlias(alias), ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// DeleteAlias removes the cached alias of address.
func (c *Client) DeleteAlias(ctx context.Context, address string) error {
	return c.rdb.Del(ctx, aliasKey(c.prefix, address)).Err()
}
