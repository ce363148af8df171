package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost means the lock expired and was taken by another holder before release.
var ErrLockLost = errors.New("lock no longer held")

// releaseScript deletes the key only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker guards an order event with a SETNX lock owned by a random token.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	if deleted == 0 {
		return ErrLockLost
	}
	return nil
}

// RedisSessionMessenger stores a one-shot storefront message for a customer session.
type RedisSessionMessenger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionMessenger(client *redis.Client, ttl time.Duration) *RedisSessionMessenger {
	return &RedisSessionMessenger{client: client, ttl: ttl}
}

func SessionMessageKey(sessionID string) string {
	return fmt.Sprintf("fraud_session_message:%s", sessionID)
}

func (m *RedisSessionMessenger) SetMessage(ctx context.Context, sessionID, message string) error {
	if sessionID == "" {
		return nil
	}
	return m.client.Set(ctx, SessionMessageKey(sessionID), message, m.ttl).Err()
}

// PopMessage returns the pending message and clears it. Empty when none is set.
func (m *RedisSessionMessenger) PopMessage(ctx context.Context, sessionID string) (string, error) {
	msg, err := m.client.GetDel(ctx, SessionMessageKey(sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return msg, err
}
