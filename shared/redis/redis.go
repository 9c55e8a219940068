package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Options describe how to reach the pub/sub server
type Options struct {
	URL      string
	Password string
	DB       int
}

// NewClient creates a client. URL may be a redis:// URL or a bare host:port.
func NewClient(opts Options) (*redis.Client, error) {
	addr := opts.URL
	if addr == "" {
		addr = "localhost:6379"
	}

	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		if opts.Password != "" {
			parsed.Password = opts.Password
		}
		if opts.DB != 0 {
			parsed.DB = opts.DB
		}
		return redis.NewClient(parsed), nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

// Ping checks the connection
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
