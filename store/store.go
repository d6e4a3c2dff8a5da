package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the shared Redis client. All cross-replica coordination goes
// through it: scripted transactions for atomicity, SET NX for the admission
// lock, plain commands for reads.
type Store struct {
	Client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{Client: client}
}

// NewClient creates a Redis client with connection pooling.
func NewClient(url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		// Fall back to a plain host:port address
		opts = &redis.Options{Addr: url}
	}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}

	opts.PoolSize = 100
	opts.MinIdleConns = 10
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// RunScript executes a loaded script via EVALSHA. go-redis re-sends the
// script body with EVAL once when the server reports NOSCRIPT (cache wiped
// or a fresh replica), which is the only retry we do per tick.
func (s *Store) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	res, err := script.Run(ctx, s.Client, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("run script: %w", err)
	}
	return res, nil
}

// AcquireLock takes a self-expiring lock. It is never released explicitly: a
// crashed holder must not block the next tick, and data integrity does not
// depend on the lock (the scripts do), only tick deduplication does.
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.Client.SetNX(ctx, key, "1", ttl).Result()
}

// HealthCheck pings Redis with a short deadline.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
