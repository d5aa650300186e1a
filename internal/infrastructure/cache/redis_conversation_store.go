package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/gestao/internal/domain/agent"
	"github.com/erp/gestao/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "agent:conversation:"

// RedisConversationStore implements agent.ConversationStore using Redis.
// Histories are shared by every instance and expire with the key TTL.
type RedisConversationStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisConversationStore connects to Redis and verifies the connection
func NewRedisConversationStore(cfg config.RedisConfig) (*RedisConversationStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisConversationStoreWithClient(client, ""), nil
}

// NewRedisConversationStoreWithClient creates a store with an existing Redis client
func NewRedisConversationStoreWithClient(client *redis.Client, keyPrefix string) *RedisConversationStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisConversationStore{client: client, keyPrefix: keyPrefix}
}

// Load returns the stored history, empty when the conversation is unknown or expired
func (s *RedisConversationStore) Load(ctx context.Context, tenantID uuid.UUID, conversationID string) ([]agent.Message, error) {
	data, err := s.client.Get(ctx, conversationKey(s.keyPrefix, tenantID, conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return decodeMessages(data)
}

// Save replaces the history and resets its TTL
func (s *RedisConversationStore) Save(ctx context.Context, tenantID uuid.UUID, conversationID string, messages []agent.Message, ttl time.Duration) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	if err := s.client.Set(ctx, conversationKey(s.keyPrefix, tenantID, conversationID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Delete forgets a conversation
func (s *RedisConversationStore) Delete(ctx context.Context, tenantID uuid.UUID, conversationID string) error {
	if err := s.client.Del(ctx, conversationKey(s.keyPrefix, tenantID, conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// Ping reports whether Redis answers, for readiness checks
func (s *RedisConversationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisConversationStore) Close() error {
	return s.client.Close()
}

// conversationKey scopes the id by tenant so ids never collide across tenants
func conversationKey(prefix string, tenantID uuid.UUID, conversationID string) string {
	return prefix + tenantID.String() + ":" + conversationID
}

func decodeMessages(data []byte) ([]agent.Message, error) {
	var messages []agent.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return messages, nil
}

var _ agent.ConversationStore = (*RedisConversationStore)(nil)
