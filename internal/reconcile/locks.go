package reconcile

import "sync"

// userLocks serializes reconciliation per user: the webhook receiver and the
// user-facing plan-change endpoint both funnel through one lock per user_id,
// while different users proceed in parallel. Locks are held only across the
// local read-modify-write, never across an outbound provider call.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the given user's mutex and returns its release func.
func (ul *userLocks) Acquire(userID string) func() {
	ul.mu.Lock()
	m, ok := ul.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		ul.locks[userID] = m
	}
	ul.mu.Unlock()

	m.Lock()
	return m.Unlock
}
