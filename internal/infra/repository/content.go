package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/unioncms/unioncms/internal/domain"
	"github.com/unioncms/unioncms/internal/infra/database/models"
	"github.com/unioncms/unioncms/internal/usecase"
)

// cached document entries expire after this many seconds.
const contentCacheTTL = 300

type ContentRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewContentRepository(db *gorm.DB, mc *memcache.Client) *ContentRepository {
	return &ContentRepository{db: db, mc: mc}
}

func contentCacheKey(kind domain.Kind, id string) string {
	return fmt.Sprintf("content:%s:%s", kind, id)
}

func contentToModel(item domain.Item) (models.Content, error) {
	fields, err := json.Marshal(item.Fields)
	if err != nil {
		return models.Content{}, err
	}

	category := ""
	if article, ok := item.Fields.(*domain.NewsArticle); ok {
		category = article.Category
	}

	return models.Content{
		ID:         item.ID,
		Collection: string(item.Kind),
		Status:     string(item.Status),
		Category:   category,
		Fields:     string(fields),
		CreatedAt:  item.CreatedAt,
		CreatedBy:  item.CreatedBy,
		UpdatedAt:  item.UpdatedAt,
		UpdatedBy:  item.UpdatedBy,
		MergedAt:   item.MergedAt,
		MergedBy:   item.MergedBy,
	}, nil
}

func contentFromModel(m models.Content) (domain.Item, error) {
	raw := domain.RawItem{
		Envelope: domain.Envelope{
			ID:        m.ID,
			Kind:      domain.Kind(m.Collection),
			Status:    domain.Status(m.Status),
			CreatedAt: m.CreatedAt,
			CreatedBy: m.CreatedBy,
			UpdatedAt: m.UpdatedAt,
			UpdatedBy: m.UpdatedBy,
			MergedAt:  m.MergedAt,
			MergedBy:  m.MergedBy,
		},
		Fields: json.RawMessage(m.Fields),
	}
	return raw.Decode()
}

func (r *ContentRepository) Create(ctx context.Context, item domain.Item) (domain.Item, error) {
	if item.ID == "" {
		item.ID = ulid.Make().String()
	}

	record, err := contentToModel(item)
	if err != nil {
		return domain.Item{}, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return appendHistory(tx, models.History{
			Collection: record.Collection,
			ContentID:  record.ID,
			Action:     string(domain.ActionCreate),
			Actor:      record.CreatedBy,
		})
	})
	if err != nil {
		return domain.Item{}, domain.TransportError{Op: "content.create", Cause: err}
	}

	return item, nil
}

func (r *ContentRepository) Get(ctx context.Context, kind domain.Kind, id string) (domain.Item, error) {
	key := contentCacheKey(kind, id)

	if cached, err := r.mc.Get(key); err == nil {
		var raw domain.RawItem
		if err := json.Unmarshal(cached.Value, &raw); err == nil {
			if item, err := raw.Decode(); err == nil {
				return item, nil
			}
		}
	}

	var record models.Content
	err := r.db.WithContext(ctx).
		Where("collection = ? AND id = ?", string(kind), id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Item{}, domain.NotFoundError{Resource: string(kind)}
	}
	if err != nil {
		return domain.Item{}, domain.TransportError{Op: "content.get", Cause: err}
	}

	item, err := contentFromModel(record)
	if err != nil {
		return domain.Item{}, err
	}

	if raw, err := item.Raw(); err == nil {
		if body, err := json.Marshal(raw); err == nil {
			r.mc.Set(&memcache.Item{Key: key, Value: body, Expiration: contentCacheTTL})
		}
	}

	return item, nil
}

func (r *ContentRepository) Update(ctx context.Context, item domain.Item, changed []string) (domain.Item, error) {
	record, err := contentToModel(item)
	if err != nil {
		return domain.Item{}, err
	}

	changedJSON, err := json.Marshal(changed)
	if err != nil {
		return domain.Item{}, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Content{}).
			Where("collection = ? AND id = ?", record.Collection, record.ID).
			Updates(map[string]any{
				"status":     record.Status,
				"category":   record.Category,
				"fields":     record.Fields,
				"updated_at": record.UpdatedAt,
				"updated_by": record.UpdatedBy,
				"merged_at":  record.MergedAt,
				"merged_by":  record.MergedBy,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return appendHistory(tx, models.History{
			Collection:    record.Collection,
			ContentID:     record.ID,
			Action:        string(domain.ActionUpdate),
			Actor:         record.UpdatedBy,
			ChangedFields: string(changedJSON),
		})
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Item{}, domain.NotFoundError{Resource: record.Collection}
	}
	if err != nil {
		return domain.Item{}, domain.TransportError{Op: "content.update", Cause: err}
	}

	r.mc.Delete(contentCacheKey(item.Kind, item.ID))

	return item, nil
}

func (r *ContentRepository) Delete(ctx context.Context, kind domain.Kind, id string, actor string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("collection = ? AND id = ?", string(kind), id).
			Delete(&models.Content{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return appendHistory(tx, models.History{
			Collection: string(kind),
			ContentID:  id,
			Action:     string(domain.ActionDelete),
			Actor:      actor,
		})
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundError{Resource: string(kind)}
	}
	if err != nil {
		return domain.TransportError{Op: "content.delete", Cause: err}
	}

	r.mc.Delete(contentCacheKey(kind, id))

	return nil
}

// orderColumns whitelists envelope columns a listing may sort on. Payload
// fields live in a JSON column and are not sortable at the store.
var orderColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"status":    "status",
}

func (r *ContentRepository) List(ctx context.Context, kind domain.Kind, q usecase.ListQuery) ([]domain.Item, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Content{}).
		Where("collection = ?", string(kind))

	if q.Status != "" {
		query = query.Where("status = ?", string(q.Status))
	}
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}

	column, ok := orderColumns[q.OrderBy]
	if !ok {
		column = "updated_at"
	}
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}
	query = query.Order(column + " " + direction)

	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var records []models.Content
	if err := query.Find(&records).Error; err != nil {
		return nil, domain.TransportError{Op: "content.list", Cause: err}
	}

	items := make([]domain.Item, 0, len(records))
	for _, record := range records {
		item, err := contentFromModel(record)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

func (r *ContentRepository) History(ctx context.Context, kind domain.Kind, id string) ([]domain.HistoryEntry, error) {
	var records []models.History
	err := r.db.WithContext(ctx).
		Where("collection = ? AND content_id = ?", string(kind), id).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, domain.TransportError{Op: "content.history", Cause: err}
	}

	entries := make([]domain.HistoryEntry, 0, len(records))
	for _, record := range records {
		var changed []string
		if record.ChangedFields != "" {
			if err := json.Unmarshal([]byte(record.ChangedFields), &changed); err != nil {
				changed = nil
			}
		}
		entries = append(entries, domain.HistoryEntry{
			ID:            record.ID,
			Collection:    domain.Kind(record.Collection),
			ContentID:     record.ContentID,
			Action:        domain.Action(record.Action),
			Actor:         record.Actor,
			ChangedFields: changed,
			CreatedAt:     record.CDate,
		})
	}

	return entries, nil
}

func appendHistory(tx *gorm.DB, entry models.History) error {
	if entry.CDate.IsZero() {
		entry.CDate = time.Now()
	}
	return tx.Create(&entry).Error
}
