package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unioncms/unioncms/internal/domain"
)

// memoryLockRepo mirrors the conditional-write semantics of the Postgres
// repository: grant when absent, expired, or held by the same actor.
type memoryLockRepo struct {
	locks map[string]domain.EditLock
}

func newMemoryLockRepo() *memoryLockRepo {
	return &memoryLockRepo{locks: map[string]domain.EditLock{}}
}

func lockKey(kind domain.Kind, id string) string {
	return string(kind) + "/" + id
}

func (m *memoryLockRepo) Acquire(ctx context.Context, lock domain.EditLock, ttl time.Duration) (domain.EditLock, error) {
	key := lockKey(lock.Collection, lock.ContentID)
	existing, ok := m.locks[key]
	if ok && !existing.Expired(lock.LockedAt, ttl) && existing.LockedBy != lock.LockedBy {
		return domain.EditLock{}, domain.DeniedError{
			HeldBy:      existing.LockedBy,
			DisplayName: existing.DisplayName,
			Since:       existing.LockedAt,
		}
	}
	m.locks[key] = lock
	return lock, nil
}

func (m *memoryLockRepo) Get(ctx context.Context, kind domain.Kind, id string) (domain.EditLock, error) {
	lock, ok := m.locks[lockKey(kind, id)]
	if !ok {
		return domain.EditLock{}, domain.NotFoundError{Resource: "lock"}
	}
	return lock, nil
}

func (m *memoryLockRepo) Release(ctx context.Context, kind domain.Kind, id string, actor string) error {
	key := lockKey(kind, id)
	if lock, ok := m.locks[key]; ok && lock.LockedBy == actor {
		delete(m.locks, key)
	}
	return nil
}

func (m *memoryLockRepo) ReleaseAll(ctx context.Context, actor string) error {
	for key, lock := range m.locks {
		if lock.LockedBy == actor {
			delete(m.locks, key)
		}
	}
	return nil
}

func TestAcquireMutualExclusionWithinTTL(t *testing.T) {
	uc := NewLockUsecase(newMemoryLockRepo(), 5*time.Minute)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	actorA := domain.Actor{ID: "actor-a", DisplayName: "A"}
	actorB := domain.Actor{ID: "actor-b", DisplayName: "B"}

	if _, err := uc.Acquire(context.Background(), actorA, domain.KindNews, "42"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	var denied domain.DeniedError
	_, err := uc.Acquire(context.Background(), actorB, domain.KindNews, "42")
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.HeldBy != actorA.ID {
		t.Fatalf("denied must name the holder, got %s", denied.HeldBy)
	}
	if !denied.Since.Equal(now) {
		t.Fatalf("denied must carry the acquisition time, got %v", denied.Since)
	}
}

func TestAcquireAfterTTLExpiry(t *testing.T) {
	uc := NewLockUsecase(newMemoryLockRepo(), 5*time.Minute)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	actorA := domain.Actor{ID: "actor-a"}
	actorB := domain.Actor{ID: "actor-b"}

	if _, err := uc.Acquire(context.Background(), actorA, domain.KindNews, "42"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// one second before expiry B is still denied
	uc.now = func() time.Time { return now.Add(5*time.Minute - time.Second) }
	if _, err := uc.Acquire(context.Background(), actorB, domain.KindNews, "42"); !errors.Is(err, domain.ErrDenied) {
		t.Fatalf("lock must hold inside the TTL, got %v", err)
	}

	// one second past expiry the lock is treated as absent, no release needed
	uc.now = func() time.Time { return now.Add(5*time.Minute + time.Second) }
	lock, err := uc.Acquire(context.Background(), actorB, domain.KindNews, "42")
	if err != nil {
		t.Fatalf("expired lock must be reclaimable: %v", err)
	}
	if lock.LockedBy != actorB.ID {
		t.Fatalf("lock must transfer to the new actor, got %s", lock.LockedBy)
	}
}

func TestAcquireRefreshesOwnLock(t *testing.T) {
	uc := NewLockUsecase(newMemoryLockRepo(), 5*time.Minute)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	actorA := domain.Actor{ID: "actor-a"}
	if _, err := uc.Acquire(context.Background(), actorA, domain.KindNews, "42"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	uc.now = func() time.Time { return now.Add(4 * time.Minute) }
	lock, err := uc.Acquire(context.Background(), actorA, domain.KindNews, "42")
	if err != nil {
		t.Fatalf("re-acquire by the holder must refresh: %v", err)
	}
	if !lock.LockedAt.Equal(now.Add(4 * time.Minute)) {
		t.Fatalf("refresh must restart the window, got %v", lock.LockedAt)
	}
}

func TestReleaseAndReleaseAll(t *testing.T) {
	repo := newMemoryLockRepo()
	uc := NewLockUsecase(repo, 5*time.Minute)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	actorA := domain.Actor{ID: "actor-a"}
	actorB := domain.Actor{ID: "actor-b"}

	if _, err := uc.Acquire(context.Background(), actorA, domain.KindNews, "1"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if _, err := uc.Acquire(context.Background(), actorA, domain.KindEvents, "2"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// releasing someone else's lock is a no-op
	if err := uc.Release(context.Background(), actorB, domain.KindNews, "1"); err != nil {
		t.Fatalf("foreign release must be a no-op: %v", err)
	}
	if _, err := uc.Status(context.Background(), domain.KindNews, "1"); err != nil {
		t.Fatalf("lock must survive a foreign release: %v", err)
	}

	if err := uc.ReleaseAll(context.Background(), actorA); err != nil {
		t.Fatalf("release all failed: %v", err)
	}
	if _, err := uc.Status(context.Background(), domain.KindNews, "1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("locks must be gone after release all, got %v", err)
	}
	if _, err := uc.Status(context.Background(), domain.KindEvents, "2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("locks must be gone after release all, got %v", err)
	}
}

func TestStatusHidesExpiredLock(t *testing.T) {
	uc := NewLockUsecase(newMemoryLockRepo(), 5*time.Minute)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	if _, err := uc.Acquire(context.Background(), domain.Actor{ID: "actor-a"}, domain.KindNews, "42"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	uc.now = func() time.Time { return now.Add(6 * time.Minute) }
	if _, err := uc.Status(context.Background(), domain.KindNews, "42"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired lock must read as absent, got %v", err)
	}
}
