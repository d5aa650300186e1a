package cache

import (
	"fmt"
	"io"

	"github.com/erp/gestao/internal/domain/agent"
	"github.com/erp/gestao/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ConversationStore is a closable agent.ConversationStore
type ConversationStore interface {
	agent.ConversationStore
	io.Closer
}

// ConversationStoreFactory creates conversation stores based on configuration
type ConversationStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*ConversationStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *ConversationStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store when Redis
// is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *ConversationStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewConversationStoreFactory creates a new factory
func NewConversationStoreFactory(cfg config.RedisConfig, opts ...FactoryOption) *ConversationStoreFactory {
	f := &ConversationStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when Redis is configured and reachable, otherwise
// the in-memory store if fallback is allowed
func (f *ConversationStoreFactory) CreateStore() (ConversationStore, error) {
	if !f.redisConfig.Enabled() {
		f.logger.Info("redis not configured, using in-memory conversation store")
		return NewInMemoryConversationStore(), nil
	}

	store, err := NewRedisConversationStore(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis conversation store")
		return store, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for conversations but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory conversation store. "+
		"Histories will not be shared between instances.",
		zap.Error(err),
	)
	return NewInMemoryConversationStore(), nil
}
