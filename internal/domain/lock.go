package domain

import "time"

// EditLock is an advisory editing lock keyed by (collection, content id). The
// repository does not consult locks before allowing a write; enforcement is a
// UI convention.
type EditLock struct {
	Collection  Kind      `json:"collection"`
	ContentID   string    `json:"contentId"`
	LockedBy    string    `json:"lockedBy"`
	DisplayName string    `json:"displayName,omitempty"`
	LockedAt    time.Time `json:"lockedAt"`
}

// Expired reports whether the lock is past its validity window. An expired
// lock is treated as absent and reclaimed lazily by the next acquirer.
func (l EditLock) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(l.LockedAt) >= ttl
}
