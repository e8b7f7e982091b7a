package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sms_crm_agent/internal/model"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "crm:session:"

// RedisStore implements Store using Redis keys with an expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, prefix, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(sender string) string {
	return r.prefix + sender
}

// Load reads the session and extends its TTL in the same round trip (GETEX).
func (r *RedisStore) Load(ctx context.Context, sender string) (*model.Session, error) {
	data, err := r.client.GetEx(ctx, r.key(sender), r.ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNoSession, sender)
		}
		return nil, fmt.Errorf("failed to GETEX session data: %w", err)
	}

	var session model.Session
	if err := sonic.UnmarshalString(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return &session, nil
}

// Save stores the session and resets its TTL.
func (r *RedisStore) Save(ctx context.Context, session *model.Session) error {
	if session == nil || session.Sender == "" {
		return fmt.Errorf("sender cannot be empty")
	}
	session.UpdatedAt = time.Now().UTC()

	data, err := sonic.MarshalString(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := r.client.Set(ctx, r.key(session.Sender), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session data: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sender string) error {
	if err := r.client.Del(ctx, r.key(sender)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of the sender's session.
func (r *RedisStore) TTL(ctx context.Context, sender string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.key(sender)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get TTL: %w", err)
	}
	return ttl, nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
