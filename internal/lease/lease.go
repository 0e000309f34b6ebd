// Package lease provides the time-bounded exclusive claim used to keep
// two scan cycles from processing the same keyword concurrently.
package lease

import (
	"context"
	"time"
)

// DefaultTTL leaves a safety margin over the expected duration of one
// keyword's scan.
const DefaultTTL = 5 * time.Minute

// Store is the storage primitive backing lease acquisition. The acquire
// must be an atomic conditional update against the keyword row.
type Store interface {
	AcquireLease(ctx context.Context, keywordID int64, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, keywordID int64) error
}

// Lease is a held claim on a keyword. It expires on its own after Until,
// so a crashed holder never strands the keyword permanently.
type Lease struct {
	KeywordID int64
	Until     time.Time
}

// Expired reports whether the lease deadline has passed.
func (l Lease) Expired(now time.Time) bool {
	return !now.Before(l.Until)
}

// Manager acquires and releases leases with a fixed TTL.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager creates a Manager. A non-positive ttl falls back to DefaultTTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}
}

// TTL returns the lease duration the manager hands out.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Acquire tries to claim the keyword. ok is false when another cycle
// holds a non-expired lease.
func (m *Manager) Acquire(ctx context.Context, keywordID int64) (l Lease, ok bool, err error) {
	ok, err = m.store.AcquireLease(ctx, keywordID, m.ttl)
	if err != nil || !ok {
		return Lease{}, false, err
	}
	return Lease{KeywordID: keywordID, Until: time.Now().UTC().Add(m.ttl)}, true, nil
}

// Release clears the lease. Callers must release on failure paths too,
// so an errored scan leaves the keyword retryable next cycle.
func (m *Manager) Release(ctx context.Context, l Lease) error {
	return m.store.ReleaseLease(ctx, l.KeywordID)
}
