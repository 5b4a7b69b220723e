package appauth

import (
	"context"
	"sync"
)

// MemoryTokenStore keeps tokens in process memory. Mobile hosts swap in a
// secure-storage backed implementation; this one serves tests and demos.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens *StoredTokens
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore returns an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Load returns the stored tokens, nil when none are persisted.
func (s *MemoryTokenStore) Load(ctx context.Context) (*StoredTokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return nil, nil
	}
	copied := *s.tokens
	return &copied, nil
}

// Save persists the tokens, replacing any previous pair.
func (s *MemoryTokenStore) Save(ctx context.Context, tokens StoredTokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = &tokens
	return nil
}

// Clear drops the persisted tokens. Clearing an empty store is a no-op.
func (s *MemoryTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = nil
	return nil
}
