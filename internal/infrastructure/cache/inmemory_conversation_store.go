package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/erp/gestao/internal/domain/agent"
	"github.com/google/uuid"
)

type conversationEntry struct {
	data      []byte
	expiresAt time.Time
}

// InMemoryConversationStore implements agent.ConversationStore in process memory.
// Histories are lost on restart and not shared between instances.
type InMemoryConversationStore struct {
	mu        sync.RWMutex
	entries   map[string]conversationEntry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryConversationStore creates the store and starts its cleanup goroutine
func NewInMemoryConversationStore() *InMemoryConversationStore {
	s := &InMemoryConversationStore{
		entries:  make(map[string]conversationEntry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// Load returns a copy of the stored history
func (s *InMemoryConversationStore) Load(_ context.Context, tenantID uuid.UUID, conversationID string) ([]agent.Message, error) {
	s.mu.RLock()
	e, ok := s.entries[conversationKey("", tenantID, conversationID)]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, nil
	}
	return decodeMessages(e.data)
}

// Save stores an encoded copy so callers cannot mutate the stored history
func (s *InMemoryConversationStore) Save(_ context.Context, tenantID uuid.UUID, conversationID string, messages []agent.Message, ttl time.Duration) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[conversationKey("", tenantID, conversationID)] = conversationEntry{data: data, expiresAt: s.now().Add(ttl)}
	return nil
}

// Delete forgets a conversation
func (s *InMemoryConversationStore) Delete(_ context.Context, tenantID uuid.UUID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, conversationKey("", tenantID, conversationID))
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryConversationStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryConversationStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryConversationStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

var _ agent.ConversationStore = (*InMemoryConversationStore)(nil)
