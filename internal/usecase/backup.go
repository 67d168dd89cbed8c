package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unioncms/unioncms/internal/domain"
)

// RestoreFailure itemizes one document that could not be re-inserted.
type RestoreFailure struct {
	Collection domain.Kind `json:"collection"`
	SourceID   string      `json:"sourceId"`
	Reason     string      `json:"reason"`
}

// RestoreResult reports a best-effort restore: per-document outcomes, never
// all-or-nothing across collections.
type RestoreResult struct {
	Created int              `json:"created"`
	Failed  []RestoreFailure `json:"failed,omitempty"`
}

// BackupUsecase exports all collections into one backup document and restores
// them through the repository's create path. Restored documents receive new
// store ids; restoring the same backup twice duplicates content.
type BackupUsecase struct {
	repo ContentRepository

	now   func() time.Time
	newID func() string
}

func NewBackupUsecase(repo ContentRepository) *BackupUsecase {
	return &BackupUsecase{
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (uc *BackupUsecase) Export(ctx context.Context, actor domain.Actor, name string) (domain.Backup, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return domain.Backup{}, err
	}
	if name == "" {
		name = fmt.Sprintf("backup-%s", uc.now().Format("2006-01-02"))
	}

	backup := domain.Backup{
		ID:          uc.newID(),
		Name:        name,
		Timestamp:   uc.now(),
		CreatedBy:   actor.ID,
		Version:     domain.BackupVersion,
		Collections: make(map[domain.Kind][]domain.RawItem, len(domain.Kinds())),
	}

	for _, kind := range domain.Kinds() {
		// zero limit: a backup must cover every document
		items, err := uc.repo.List(ctx, kind, ListQuery{})
		if err != nil {
			return domain.Backup{}, err
		}
		raws := make([]domain.RawItem, 0, len(items))
		for _, item := range items {
			raw, err := item.Raw()
			if err != nil {
				return domain.Backup{}, err
			}
			raws = append(raws, raw)
		}
		backup.Collections[kind] = raws
	}

	return backup, nil
}

func (uc *BackupUsecase) Restore(ctx context.Context, actor domain.Actor, backup domain.Backup) (RestoreResult, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return RestoreResult{}, err
	}

	var result RestoreResult
	now := uc.now()

	for _, kind := range domain.Kinds() {
		for _, raw := range backup.Collections[kind] {
			raw.Envelope.Kind = kind
			item, err := raw.Decode()
			if err != nil {
				result.Failed = append(result.Failed, RestoreFailure{
					Collection: kind,
					SourceID:   raw.Envelope.ID,
					Reason:     err.Error(),
				})
				continue
			}

			sourceID := item.ID
			item.ID = "" // the store assigns a fresh id
			item.UpdatedAt = now
			item.UpdatedBy = actor.ID
			if item.CreatedAt.IsZero() {
				item.CreatedAt = now
				item.CreatedBy = actor.ID
			}

			if _, err := uc.repo.Create(ctx, item); err != nil {
				result.Failed = append(result.Failed, RestoreFailure{
					Collection: kind,
					SourceID:   sourceID,
					Reason:     err.Error(),
				})
				continue
			}
			result.Created++
		}
	}

	return result, nil
}
