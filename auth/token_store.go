package auth

import (
	"context"
	"sync"
)

// TokenStore is the capability the ERP client needs to authenticate calls.
type TokenStore interface {
	GetToken() string
	SetToken(token string)
	Clear()
}

// MemoryTokenStore keeps a single bearer token in memory.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (s *MemoryTokenStore) GetToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryTokenStore) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MemoryTokenStore) Clear() {
	s.SetToken("")
}

type storeKey struct{}

// WithTokenStore attaches the caller's token store to ctx.
func WithTokenStore(ctx context.Context, store TokenStore) context.Context {
	return context.WithValue(ctx, storeKey{}, store)
}

// TokenStoreFrom returns the token store attached to ctx, if any.
func TokenStoreFrom(ctx context.Context) (TokenStore, bool) {
	store, ok := ctx.Value(storeKey{}).(TokenStore)
	return store, ok && store != nil
}
