package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unioncms/unioncms/internal/domain"
	"github.com/unioncms/unioncms/internal/infra/database/models"
)

type LockRepository struct {
	db *gorm.DB
}

func NewLockRepository(db *gorm.DB) *LockRepository {
	return &LockRepository{db: db}
}

// lockUpsertClause makes acquisition a single conditional write. The insert
// takes the row when absent; the update arm fires only when the existing row
// is held by the same actor or already expired. A valid lock held by someone
// else leaves the statement with zero affected rows, so two concurrent
// acquirers of a free key cannot both be granted: the unique index serializes
// the inserts and the loser's update arm is filtered out by the guard.
func lockUpsertClause(lock domain.EditLock, ttl time.Duration) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"locked_by", "display_name", "locked_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{
				SQL:  "edit_locks.locked_by = ? OR edit_locks.locked_at <= ?",
				Vars: []any{lock.LockedBy, lock.LockedAt.Add(-ttl)},
			},
		}},
	}
}

// Acquire grants the lock when the row is absent, expired, or held by the
// same actor (refresh). Zero rows affected means a valid foreign holder; the
// row is re-read to report who.
func (r *LockRepository) Acquire(ctx context.Context, lock domain.EditLock, ttl time.Duration) (domain.EditLock, error) {
	record := models.EditLock{
		Collection:  string(lock.Collection),
		ContentID:   lock.ContentID,
		LockedBy:    lock.LockedBy,
		DisplayName: lock.DisplayName,
		LockedAt:    lock.LockedAt,
	}

	result := r.db.WithContext(ctx).Clauses(lockUpsertClause(lock, ttl)).Create(&record)
	if result.Error != nil {
		return domain.EditLock{}, domain.TransportError{Op: "lock.acquire", Cause: result.Error}
	}

	if result.RowsAffected == 0 {
		var existing models.EditLock
		err := r.db.WithContext(ctx).
			Where("collection = ? AND content_id = ?", string(lock.Collection), lock.ContentID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// holder released between the write and the read; the next
			// attempt takes the free row
			return domain.EditLock{}, domain.DeniedError{Since: lock.LockedAt}
		}
		if err != nil {
			return domain.EditLock{}, domain.TransportError{Op: "lock.acquire", Cause: err}
		}
		return domain.EditLock{}, domain.DeniedError{
			HeldBy:      existing.LockedBy,
			DisplayName: existing.DisplayName,
			Since:       existing.LockedAt,
		}
	}

	return lock, nil
}

func (r *LockRepository) Get(ctx context.Context, kind domain.Kind, id string) (domain.EditLock, error) {
	var record models.EditLock
	err := r.db.WithContext(ctx).
		Where("collection = ? AND content_id = ?", string(kind), id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.EditLock{}, domain.NotFoundError{Resource: "lock"}
	}
	if err != nil {
		return domain.EditLock{}, domain.TransportError{Op: "lock.get", Cause: err}
	}

	return domain.EditLock{
		Collection:  domain.Kind(record.Collection),
		ContentID:   record.ContentID,
		LockedBy:    record.LockedBy,
		DisplayName: record.DisplayName,
		LockedAt:    record.LockedAt,
	}, nil
}

// Release deletes the lock only when held by the given actor. Releasing a
// lock held by someone else is a no-op.
func (r *LockRepository) Release(ctx context.Context, kind domain.Kind, id string, actor string) error {
	err := r.db.WithContext(ctx).
		Where("collection = ? AND content_id = ? AND locked_by = ?", string(kind), id, actor).
		Delete(&models.EditLock{}).Error
	if err != nil {
		return domain.TransportError{Op: "lock.release", Cause: err}
	}
	return nil
}

func (r *LockRepository) ReleaseAll(ctx context.Context, actor string) error {
	err := r.db.WithContext(ctx).
		Where("locked_by = ?", actor).
		Delete(&models.EditLock{}).Error
	if err != nil {
		return domain.TransportError{Op: "lock.releaseAll", Cause: err}
	}
	return nil
}
