package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultGreetedSetKey is the Redis set holding greeted user ids.
const DefaultGreetedSetKey = "catalogrelay:greeted"

// Compile-time check that RedisGreetingRepo implements GreetingRepo.
var _ GreetingRepo = (*RedisGreetingRepo)(nil)

// RedisOpts holds connection settings for the Redis greeting repository.
type RedisOpts struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisOption defines a configuration option for the Redis greeting repository.
type RedisOption func(*RedisOpts)

// WithRedisAddr sets the Redis server address (host:port).
func WithRedisAddr(addr string) RedisOption {
	return func(o *RedisOpts) { o.Addr = addr }
}

// WithRedisPassword sets the Redis password.
func WithRedisPassword(password string) RedisOption {
	return func(o *RedisOpts) { o.Password = password }
}

// WithRedisDB selects the Redis logical database.
func WithRedisDB(db int) RedisOption {
	return func(o *RedisOpts) { o.DB = db }
}

// WithRedisKey overrides the set key used to store greeted users.
func WithRedisKey(key string) RedisOption {
	return func(o *RedisOpts) { o.Key = key }
}

// RedisGreetingRepo stores greeted users in a Redis set. SADD makes GreetIfNeeded atomic
// across every relay instance sharing the same Redis.
type RedisGreetingRepo struct {
	client redis.Cmdable
	key    string
}

// NewRedisGreetingRepo dials Redis with the given options and verifies the connection.
func NewRedisGreetingRepo(ctx context.Context, opts ...RedisOption) (*RedisGreetingRepo, *redis.Client, error) {
	cfg := RedisOpts{Addr: "localhost:6379", Key: DefaultGreetedSetKey}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewRedisGreetingRepo invoked", "addr", cfg.Addr, "db", cfg.DB, "key", cfg.Key)

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisGreetingRepoWithClient(client, cfg.Key), client, nil
}

// NewRedisGreetingRepoWithClient wraps an existing client. An empty key selects DefaultGreetedSetKey.
func NewRedisGreetingRepoWithClient(client redis.Cmdable, key string) *RedisGreetingRepo {
	if key == "" {
		key = DefaultGreetedSetKey
	}
	return &RedisGreetingRepo{client: client, key: key}
}

func (r *RedisGreetingRepo) HasGreeted(ctx context.Context, userID string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, userID).Result()
	if err != nil {
		return false, fmt.Errorf("redis greeted lookup failed: %w", err)
	}
	return ok, nil
}

func (r *RedisGreetingRepo) MarkGreeted(ctx context.Context, userID string) error {
	if err := r.client.SAdd(ctx, r.key, userID).Err(); err != nil {
		return fmt.Errorf("redis mark greeted failed: %w", err)
	}
	return nil
}

func (r *RedisGreetingRepo) GreetIfNeeded(ctx context.Context, userID string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.key, userID).Result()
	if err != nil {
		return false, fmt.Errorf("redis greet check failed: %w", err)
	}
	return added == 1, nil
}

func (r *RedisGreetingRepo) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis greeted count failed: %w", err)
	}
	return int(n), nil
}
