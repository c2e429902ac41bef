package mockpdf

import (
	"context"
	"sync"
	"time"
)

// DefaultEligibilityTTL bounds how long a snapshot is served from cache.
const DefaultEligibilityTTL = 30 * time.Second

// EligibilityResolver caches the caller's EligibilitySnapshot for a short TTL.
// The snapshot is advisory; the server re-validates every submission.
type EligibilityResolver struct {
	source Entitlements
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	snapshot  EligibilitySnapshot
	fetchedAt time.Time
	cached    bool
}

// NewEligibilityResolver wraps source. A non-positive ttl uses DefaultEligibilityTTL.
func NewEligibilityResolver(source Entitlements, ttl time.Duration) *EligibilityResolver {
	if ttl <= 0 {
		ttl = DefaultEligibilityTTL
	}
	return &EligibilityResolver{source: source, ttl: ttl, now: time.Now}
}

// Resolve returns the cached snapshot when fresh, otherwise fetches a new one.
func (r *EligibilityResolver) Resolve(ctx context.Context, authenticated bool) (EligibilitySnapshot, error) {
	return r.resolve(ctx, authenticated, false)
}

// Refresh always fetches from the source and replaces the cache.
func (r *EligibilityResolver) Refresh(ctx context.Context, authenticated bool) (EligibilitySnapshot, error) {
	return r.resolve(ctx, authenticated, true)
}

// Invalidate drops the cached snapshot.
func (r *EligibilityResolver) Invalidate() {
	r.mu.Lock()
	r.cached = false
	r.mu.Unlock()
}

func (r *EligibilityResolver) resolve(ctx context.Context, authenticated, force bool) (EligibilitySnapshot, error) {
	if !authenticated {
		return EligibilitySnapshot{}, ErrNotAuthenticated
	}

	// Holding the lock across the fetch collapses concurrent misses into one call.
	r.mu.Lock()
	defer r.mu.Unlock()

	if !force && r.cached && r.now().Sub(r.fetchedAt) < r.ttl {
		return r.snapshot, nil
	}

	snap, err := r.source.Eligibility(ctx)
	if err != nil {
		return EligibilitySnapshot{}, err
	}
	if snap.SubscriptionAllowanceRemaining < 0 {
		snap.SubscriptionAllowanceRemaining = 0
	}
	r.snapshot = snap
	r.fetchedAt = r.now()
	r.cached = true
	return snap, nil
}
