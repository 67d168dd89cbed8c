package domain

import "time"

const (
	ActorCtxKey = "uc-actor"
)

const (
	RoleUnknown = iota
	RoleContributor
	RoleEditor
	RoleAdmin
)

func RoleString(r int) string {
	switch r {
	case RoleContributor:
		return "contributor"
	case RoleEditor:
		return "editor"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

func ParseRole(s string) int {
	switch s {
	case "contributor":
		return RoleContributor
	case "editor":
		return RoleEditor
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

const (
	// DefaultLockTTL is the validity window of an editing lock.
	DefaultLockTTL = 5 * time.Minute

	// BackupVersion tags exported backup documents.
	BackupVersion = "1"
)

// Actor is an authenticated session performing operations.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Role        int    `json:"role"`
}
