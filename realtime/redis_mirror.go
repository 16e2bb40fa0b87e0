package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parley/chat-service/models"
)

const (
	presenceKeyPrefix = "presence:"
	onlineSetKey      = "online_users"
)

type mirrorEntry struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	LastSeen time.Time `json:"last_seen"`
}

// RedisPresenceMirror keeps TTL'd presence keys and an online-users set in
// Redis in step with the in-memory directory. The TTL means a crashed node's
// entries lapse on their own.
type RedisPresenceMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPresenceMirror(client *redis.Client, ttl time.Duration) *RedisPresenceMirror {
	if ttl <= 0 {
		ttl = 120 * time.Second
	}
	return &RedisPresenceMirror{client: client, ttl: ttl}
}

func (m *RedisPresenceMirror) SetOnline(ctx context.Context, user models.OnlineUser) error {
	data, err := json.Marshal(mirrorEntry{
		UserID:   user.UserID,
		Username: user.Username,
		LastSeen: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal presence entry: %w", err)
	}

	// Pipeline keeps the key and the set in step
	pipe := m.client.Pipeline()
	pipe.Set(ctx, presenceKeyPrefix+user.UserID, data, m.ttl)
	pipe.SAdd(ctx, onlineSetKey, user.UserID)
	pipe.Expire(ctx, onlineSetKey, m.ttl*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror online presence: %w", err)
	}
	return nil
}

func (m *RedisPresenceMirror) SetOffline(ctx context.Context, userID string) error {
	pipe := m.client.Pipeline()
	pipe.Del(ctx, presenceKeyPrefix+userID)
	pipe.SRem(ctx, onlineSetKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror offline presence: %w", err)
	}
	return nil
}

func (m *RedisPresenceMirror) Refresh(ctx context.Context, users []models.OnlineUser) error {
	if len(users) == 0 {
		return nil
	}

	pipe := m.client.Pipeline()
	for _, user := range users {
		data, err := json.Marshal(mirrorEntry{
			UserID:   user.UserID,
			Username: user.Username,
			LastSeen: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal presence entry: %w", err)
		}
		pipe.Set(ctx, presenceKeyPrefix+user.UserID, data, m.ttl)
		pipe.SAdd(ctx, onlineSetKey, user.UserID)
	}
	pipe.Expire(ctx, onlineSetKey, m.ttl*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh presence mirror: %w", err)
	}
	return nil
}
