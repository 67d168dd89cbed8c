package usecase

import (
	"context"
	"time"

	"github.com/unioncms/unioncms/internal/domain"
)

// LockUsecase manages advisory editing locks. At most one valid lock exists
// per (collection, content id); a lock is valid only while now - lockedAt is
// under the TTL, and an expired lock is treated as absent.
type LockUsecase struct {
	repo LockRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewLockUsecase(repo LockRepository, ttl time.Duration) *LockUsecase {
	if ttl <= 0 {
		ttl = domain.DefaultLockTTL
	}
	return &LockUsecase{
		repo: repo,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Acquire grants the lock when it is absent, expired, or already held by the
// same actor (which refreshes the window). A valid lock held by someone else
// yields DeniedError with the holder and acquisition time.
func (uc *LockUsecase) Acquire(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (domain.EditLock, error) {
	lock := domain.EditLock{
		Collection:  kind,
		ContentID:   id,
		LockedBy:    actor.ID,
		DisplayName: actor.DisplayName,
		LockedAt:    uc.now(),
	}
	return uc.repo.Acquire(ctx, lock, uc.ttl)
}

// Status reports the current lock, mapping expired locks to NotFound.
func (uc *LockUsecase) Status(ctx context.Context, kind domain.Kind, id string) (domain.EditLock, error) {
	lock, err := uc.repo.Get(ctx, kind, id)
	if err != nil {
		return domain.EditLock{}, err
	}
	if lock.Expired(uc.now(), uc.ttl) {
		return domain.EditLock{}, domain.NotFoundError{Resource: "lock"}
	}
	return lock, nil
}

// Release deletes the lock if held by the actor; otherwise it is a no-op.
func (uc *LockUsecase) Release(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) error {
	return uc.repo.Release(ctx, kind, id, actor.ID)
}

// ReleaseAll drops every lock held by the actor, used on logout or session
// end.
func (uc *LockUsecase) ReleaseAll(ctx context.Context, actor domain.Actor) error {
	return uc.repo.ReleaseAll(ctx, actor.ID)
}
