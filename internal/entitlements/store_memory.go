package entitlements

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu     sync.RWMutex
	policy Policy
	now    func() time.Time
	data   map[string]Record
}

// NewMemoryStore returns an in-process store.
func NewMemoryStore(policy Policy) Store {
	return newMemoryStore(policy, func() time.Time { return time.Now().UTC() })
}

func newMemoryStore(policy Policy, now func() time.Time) *memoryStore {
	return &memoryStore{policy: policy.normalized(), now: now, data: make(map[string]Record)}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(userID), nil
}

func (s *memoryStore) ensureLocked(userID string) Record {
	r, ok := s.data[userID]
	if !ok {
		r = Record{UserID: userID}
	}
	r.AllowanceLimit = s.policy.AllowanceLimit
	rollPeriod(&r, s.policy, s.now())
	s.data[userID] = r
	return r
}

func (s *memoryStore) ConsumeFree(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensureLocked(userID)
	if r.FreeUsed {
		return r, ErrFreeBundleUsed
	}
	now := s.now()
	r.FreeUsed = true
	r.FreeUsedAt = &now
	s.data[userID] = r
	return r, nil
}

func (s *memoryStore) ConsumeAllowance(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensureLocked(userID)
	if r.AllowanceRemaining() == 0 {
		return r, ErrAllowanceExhausted
	}
	r.AllowanceUsed++
	s.data[userID] = r
	return r, nil
}

func (s *memoryStore) ReleaseFree(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensureLocked(userID)
	r.FreeUsed = false
	r.FreeUsedAt = nil
	s.data[userID] = r
	return r, nil
}

func (s *memoryStore) ReleaseAllowance(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensureLocked(userID)
	if r.AllowanceUsed > 0 {
		r.AllowanceUsed--
	}
	s.data[userID] = r
	return r, nil
}

func (s *memoryStore) Reset(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return s.ensureLocked(userID), nil
}
