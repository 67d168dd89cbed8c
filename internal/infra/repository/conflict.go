package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/unioncms/unioncms/internal/domain"
	"github.com/unioncms/unioncms/internal/infra/database/models"
)

type ConflictRepository struct {
	db *gorm.DB
}

func NewConflictRepository(db *gorm.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

func conflictFromModel(m models.Conflict) (domain.ConflictRecord, error) {
	var local, server map[string]any
	if err := json.Unmarshal([]byte(m.LocalChange), &local); err != nil {
		return domain.ConflictRecord{}, err
	}
	if err := json.Unmarshal([]byte(m.ServerSnapshot), &server); err != nil {
		return domain.ConflictRecord{}, err
	}

	return domain.ConflictRecord{
		ID:             m.ID,
		Collection:     domain.Kind(m.Collection),
		ContentID:      m.ContentID,
		LocalChange:    local,
		ServerSnapshot: server,
		BaseUpdatedAt:  m.BaseUpdatedAt,
		Strategy:       domain.Strategy(m.Strategy),
		Resolved:       m.Resolved,
		CreatedAt:      m.CreatedAt,
		CreatedBy:      m.CreatedBy,
		ResolvedAt:     m.ResolvedAt,
		ResolvedBy:     m.ResolvedBy,
	}, nil
}

func (r *ConflictRepository) Save(ctx context.Context, rec domain.ConflictRecord) error {
	local, err := json.Marshal(rec.LocalChange)
	if err != nil {
		return err
	}
	server, err := json.Marshal(rec.ServerSnapshot)
	if err != nil {
		return err
	}

	record := models.Conflict{
		ID:             rec.ID,
		Collection:     string(rec.Collection),
		ContentID:      rec.ContentID,
		LocalChange:    string(local),
		ServerSnapshot: string(server),
		BaseUpdatedAt:  rec.BaseUpdatedAt,
		Strategy:       string(rec.Strategy),
		Resolved:       rec.Resolved,
		CreatedAt:      rec.CreatedAt,
		CreatedBy:      rec.CreatedBy,
	}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return domain.TransportError{Op: "conflict.save", Cause: err}
	}
	return nil
}

func (r *ConflictRepository) Get(ctx context.Context, id string) (domain.ConflictRecord, error) {
	var record models.Conflict
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ConflictRecord{}, domain.NotFoundError{Resource: "conflict"}
	}
	if err != nil {
		return domain.ConflictRecord{}, domain.TransportError{Op: "conflict.get", Cause: err}
	}

	return conflictFromModel(record)
}

func (r *ConflictRepository) ListUnresolved(ctx context.Context) ([]domain.ConflictRecord, error) {
	var records []models.Conflict
	err := r.db.WithContext(ctx).
		Where("resolved = ?", false).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, domain.TransportError{Op: "conflict.list", Cause: err}
	}

	recs := make([]domain.ConflictRecord, 0, len(records))
	for _, record := range records {
		rec, err := conflictFromModel(record)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (r *ConflictRepository) MarkResolved(ctx context.Context, id string, actor string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Conflict{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]any{
			"resolved":    true,
			"resolved_at": &now,
			"resolved_by": actor,
		})
	if result.Error != nil {
		return domain.TransportError{Op: "conflict.resolve", Cause: result.Error}
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "conflict"}
	}
	return nil
}
