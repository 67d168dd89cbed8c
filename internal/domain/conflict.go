package domain

import "time"

// Strategy selects how write conflicts are handled. One strategy is active
// process-wide; selection is never per-document.
type Strategy string

const (
	StrategyLastWriteWins Strategy = "last-write-wins"
	StrategyMerge         Strategy = "merge"
	StrategyManual        Strategy = "manual"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLastWriteWins, StrategyMerge, StrategyManual:
		return Strategy(s), nil
	case "":
		return StrategyLastWriteWins, nil
	default:
		return "", ValidationError{Field: "strategy", Reason: "must be last-write-wins, merge or manual"}
	}
}

// ChangeSet is a local pending change against one document.
type ChangeSet struct {
	Collection    Kind           `json:"collection"`
	ContentID     string         `json:"contentId"`
	BaseUpdatedAt time.Time      `json:"baseUpdatedAt"`
	Status        Status         `json:"status,omitempty"`
	Fields        map[string]any `json:"fields"`
	Actor         string         `json:"actor"`
}

// ConflictRecord pairs a local pending change with the server snapshot at the
// moment of conflict detection. Under the manual strategy it is persisted
// unresolved until an administrator acts.
type ConflictRecord struct {
	ID             string         `json:"id"`
	Collection     Kind           `json:"collection"`
	ContentID      string         `json:"contentId"`
	LocalChange    map[string]any `json:"localChange"`
	ServerSnapshot map[string]any `json:"serverSnapshot"`
	BaseUpdatedAt  time.Time      `json:"baseUpdatedAt"`
	Strategy       Strategy       `json:"strategy"`
	Resolved       bool           `json:"resolved"`
	CreatedAt      time.Time      `json:"createdAt"`
	CreatedBy      string         `json:"createdBy"`
	ResolvedAt     *time.Time     `json:"resolvedAt,omitempty"`
	ResolvedBy     string         `json:"resolvedBy,omitempty"`
}

// ResolveLastWriteWins decides whether a pending write may proceed. It is a
// pure function of the two timestamps: the write proceeds when the local base
// is no older than the server copy.
func ResolveLastWriteWins(localBase, serverUpdatedAt time.Time) bool {
	return !localBase.Before(serverUpdatedAt)
}

// immutable envelope fields never overwritten by a merge.
var immutableFields = map[string]bool{
	"id":        true,
	"kind":      true,
	"createdAt": true,
	"createdBy": true,
}

// MergeFields overlays every field of the local change onto the server
// snapshot. Field-level last-writer-wins: array and object values are replaced
// whole, and server-only fields pass through unchanged.
func MergeFields(server, local map[string]any) map[string]any {
	merged := make(map[string]any, len(server)+len(local))
	for k, v := range server {
		merged[k] = v
	}
	for k, v := range local {
		if immutableFields[k] {
			continue
		}
		merged[k] = v
	}
	return merged
}
