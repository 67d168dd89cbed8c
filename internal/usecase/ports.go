package usecase

import (
	"context"
	"io"
	"time"

	"github.com/unioncms/unioncms/internal/domain"
)

// ListQuery narrows and orders a collection listing. A zero Limit means no
// cap; interactive listings apply their own bound before reaching the store.
type ListQuery struct {
	Status     domain.Status
	Category   string
	OrderBy    string
	Descending bool
	Limit      int
}

// ContentRepository defines storage operations over named collections. Every
// write stamps the envelope before persisting; single-document writes are
// atomic at the store level.
type ContentRepository interface {
	Create(ctx context.Context, item domain.Item) (domain.Item, error)
	Get(ctx context.Context, kind domain.Kind, id string) (domain.Item, error)
	Update(ctx context.Context, item domain.Item, changed []string) (domain.Item, error)
	Delete(ctx context.Context, kind domain.Kind, id string, actor string) error
	List(ctx context.Context, kind domain.Kind, q ListQuery) ([]domain.Item, error)
	History(ctx context.Context, kind domain.Kind, id string) ([]domain.HistoryEntry, error)
}

// LockRepository defines persistence for advisory editing locks. Acquire must
// be a single conditional write: grant only when the lock is absent, expired,
// or already held by the same actor.
type LockRepository interface {
	Acquire(ctx context.Context, lock domain.EditLock, ttl time.Duration) (domain.EditLock, error)
	Get(ctx context.Context, kind domain.Kind, id string) (domain.EditLock, error)
	Release(ctx context.Context, kind domain.Kind, id string, actor string) error
	ReleaseAll(ctx context.Context, actor string) error
}

// ConflictRepository persists unresolved conflict records for the manual
// strategy.
type ConflictRepository interface {
	Save(ctx context.Context, rec domain.ConflictRecord) error
	Get(ctx context.Context, id string) (domain.ConflictRecord, error)
	ListUnresolved(ctx context.Context) ([]domain.ConflictRecord, error)
	MarkResolved(ctx context.Context, id string, actor string) error
}

// Publisher delivers change events to subscribers after a committed mutation.
type Publisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

// BlobStore uploads files and returns a public URL to store in a content
// field. Storage mechanics stay outside this module.
type BlobStore interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}
