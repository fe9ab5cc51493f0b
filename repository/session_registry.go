package repository

import (
	"time"

	"github.com/yashrajoria/equipment-workflow-service/logger"
	"github.com/yashrajoria/equipment-workflow-service/workflow"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Session is one open workflow and the user who opened it.
type Session struct {
	ID        string
	Owner     string
	CreatedAt time.Time
	Workflow  *workflow.Workflow
}

// SessionRegistry keeps the open workflow sessions of this instance.
type SessionRegistry interface {
	Put(s *Session)
	Get(id string) (*Session, bool)
	Remove(id string) bool
	Len() int
}

type lruSessionRegistry struct {
	cache *expirable.LRU[string, *Session]
}

// NewSessionRegistry returns a registry holding at most size sessions. A
// session untouched for ttl is evicted and its workflow closed.
func NewSessionRegistry(size int, ttl time.Duration) SessionRegistry {
	onEvict := func(id string, s *Session) {
		s.Workflow.Close()
		logger.Log.Debug("workflow session evicted",
			zap.String("session_id", id),
			zap.String("owner", s.Owner),
		)
	}
	return &lruSessionRegistry{cache: expirable.NewLRU[string, *Session](size, onEvict, ttl)}
}

func (r *lruSessionRegistry) Put(s *Session) {
	r.cache.Add(s.ID, s)
}

// Get refreshes the session's expiry on every hit.
func (r *lruSessionRegistry) Get(id string) (*Session, bool) {
	s, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	r.cache.Add(id, s)
	return s, true
}

func (r *lruSessionRegistry) Remove(id string) bool {
	return r.cache.Remove(id)
}

func (r *lruSessionRegistry) Len() int {
	return r.cache.Len()
}
