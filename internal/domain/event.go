package domain

import (
	"encoding/json"
	"time"

	"github.com/zeebo/xxh3"
)

// Action names a mutation applied to a document.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ChangeEvent is published after every committed mutation, one channel per
// collection. Digest lets subscribers skip no-op refreshes.
type ChangeEvent struct {
	Collection Kind      `json:"collection"`
	ContentID  string    `json:"contentId"`
	Action     Action    `json:"action"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Digest     uint64    `json:"digest,omitempty"`
}

// PayloadDigest fingerprints a payload for change events.
func PayloadDigest(p Payload) uint64 {
	b, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	return xxh3.Hash(b)
}

// HistoryEntry is one line of the append-only mutation log. Entries are never
// mutated or deleted.
type HistoryEntry struct {
	ID            int64     `json:"id"`
	Collection    Kind      `json:"collection"`
	ContentID     string    `json:"contentId"`
	Action        Action    `json:"action"`
	Actor         string    `json:"actor"`
	ChangedFields []string  `json:"changedFields,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
