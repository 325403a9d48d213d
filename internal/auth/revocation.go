package auth

import (
	"sync"
	"time"
)

// Revocations remembers logged-out token ids until the tokens would have
// expired anyway.
type Revocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke marks jti invalid until expires.
func (r *Revocations) Revoke(jti string, expires time.Time) {
	if jti == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[jti] = expires
	r.pruneLocked()
}

func (r *Revocations) Revoked(jti string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.entries[jti]
	if !ok {
		return false
	}
	if r.now().After(exp) {
		delete(r.entries, jti)
		return false
	}
	return true
}

// Len reports how many revocations are still tracked.
func (r *Revocations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	return len(r.entries)
}

func (r *Revocations) pruneLocked() {
	now := r.now()
	for id, exp := range r.entries {
		if now.After(exp) {
			delete(r.entries, id)
		}
	}
}
