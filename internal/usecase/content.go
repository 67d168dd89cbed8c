package usecase

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/unioncms/unioncms/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ContentUsecase drives validated CRUD over every collection, stamping actor
// and timestamp metadata and routing write conflicts through the configured
// strategy.
type ContentUsecase struct {
	repo      ContentRepository
	conflicts ConflictRepository
	publisher Publisher
	strategy  domain.Strategy

	now   func() time.Time
	newID func() string
}

func NewContentUsecase(
	repo ContentRepository,
	conflicts ConflictRepository,
	publisher Publisher,
	strategy domain.Strategy,
) *ContentUsecase {
	return &ContentUsecase{
		repo:      repo,
		conflicts: conflicts,
		publisher: publisher,
		strategy:  strategy,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// writeRole is the minimum role for mutating a collection. Contact messages
// are created by the public site without a session.
func writeRole(kind domain.Kind) int {
	switch kind {
	case domain.KindSettings:
		return domain.RoleAdmin
	case domain.KindMessages:
		return domain.RoleUnknown
	default:
		return domain.RoleEditor
	}
}

func requireRole(actor domain.Actor, required int) error {
	if actor.Role < required {
		return domain.PermissionError{Actor: actor.ID, Required: required}
	}
	return nil
}

func (uc *ContentUsecase) Create(ctx context.Context, actor domain.Actor, kind domain.Kind, status domain.Status, payload domain.Payload) (domain.Item, error) {
	if err := requireRole(actor, writeRole(kind)); err != nil {
		return domain.Item{}, err
	}
	if payload.Kind() != kind {
		return domain.Item{}, domain.ValidationError{Field: "fields", Reason: "payload does not match collection"}
	}
	if err := payload.Validate(); err != nil {
		return domain.Item{}, err
	}
	if status == "" {
		status = domain.StatusDraft
	}
	if !domain.ValidStatus(status) {
		return domain.Item{}, domain.ValidationError{Field: "status", Reason: "must be draft, published or archived"}
	}

	now := uc.now()
	item := domain.Item{
		Envelope: domain.Envelope{
			Kind:      kind,
			Status:    status,
			CreatedAt: now,
			CreatedBy: actor.ID,
			UpdatedAt: now,
			UpdatedBy: actor.ID,
		},
		Fields: payload,
	}

	created, err := uc.repo.Create(ctx, item)
	if err != nil {
		return domain.Item{}, err
	}

	uc.publish(ctx, domain.ChangeEvent{
		Collection: kind,
		ContentID:  created.ID,
		Action:     domain.ActionCreate,
		Actor:      actor.ID,
		Timestamp:  now,
		Digest:     domain.PayloadDigest(created.Fields),
	})

	return created, nil
}

func (uc *ContentUsecase) Get(ctx context.Context, kind domain.Kind, id string) (domain.Item, error) {
	return uc.repo.Get(ctx, kind, id)
}

func (uc *ContentUsecase) List(ctx context.Context, kind domain.Kind, q ListQuery) ([]domain.Item, error) {
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	return uc.repo.List(ctx, kind, q)
}

// Update applies a partial change. When the server copy moved past the
// change's base timestamp the configured strategy decides the outcome:
// last-write-wins returns ConflictError for stale bases, merge overlays the
// change onto the current snapshot and always proceeds, manual persists a
// ConflictRecord and withholds the write.
func (uc *ContentUsecase) Update(ctx context.Context, actor domain.Actor, change domain.ChangeSet) (domain.Item, error) {
	role := writeRole(change.Collection)
	if role < domain.RoleEditor {
		role = domain.RoleEditor
	}
	if err := requireRole(actor, role); err != nil {
		return domain.Item{}, err
	}

	current, err := uc.repo.Get(ctx, change.Collection, change.ContentID)
	if err != nil {
		return domain.Item{}, err
	}

	serverFields, err := domain.PayloadFields(current.Fields)
	if err != nil {
		return domain.Item{}, err
	}

	now := uc.now()
	merged := false

	conflicted := !change.BaseUpdatedAt.IsZero() && change.BaseUpdatedAt.Before(current.UpdatedAt)
	if conflicted {
		switch uc.strategy {
		case domain.StrategyLastWriteWins:
			if !domain.ResolveLastWriteWins(change.BaseUpdatedAt, current.UpdatedAt) {
				return domain.Item{}, domain.ConflictError{
					Collection:      change.Collection,
					ContentID:       change.ContentID,
					ServerUpdatedAt: current.UpdatedAt,
				}
			}
		case domain.StrategyMerge:
			merged = true
		case domain.StrategyManual:
			rec := domain.ConflictRecord{
				ID:             uc.newID(),
				Collection:     change.Collection,
				ContentID:      change.ContentID,
				LocalChange:    change.Fields,
				ServerSnapshot: serverFields,
				BaseUpdatedAt:  change.BaseUpdatedAt,
				Strategy:       domain.StrategyManual,
				CreatedAt:      now,
				CreatedBy:      actor.ID,
			}
			if err := uc.conflicts.Save(ctx, rec); err != nil {
				return domain.Item{}, err
			}
			return domain.Item{}, domain.ManualConflictError{ConflictID: rec.ID}
		}
	}

	fields := domain.MergeFields(serverFields, change.Fields)
	payload, err := domain.PayloadFromFields(change.Collection, fields)
	if err != nil {
		return domain.Item{}, err
	}
	if err := payload.Validate(); err != nil {
		return domain.Item{}, err
	}

	item := current
	item.Fields = payload
	item.UpdatedAt = now
	item.UpdatedBy = actor.ID
	if change.Status != "" {
		if !domain.ValidStatus(change.Status) {
			return domain.Item{}, domain.ValidationError{Field: "status", Reason: "must be draft, published or archived"}
		}
		item.Status = change.Status
	}
	if merged {
		mergedAt := now
		item.MergedAt = &mergedAt
		item.MergedBy = actor.ID
	}

	updated, err := uc.repo.Update(ctx, item, changedFieldNames(change.Fields))
	if err != nil {
		return domain.Item{}, err
	}

	uc.publish(ctx, domain.ChangeEvent{
		Collection: change.Collection,
		ContentID:  change.ContentID,
		Action:     domain.ActionUpdate,
		Actor:      actor.ID,
		Timestamp:  now,
		Digest:     domain.PayloadDigest(updated.Fields),
	})

	return updated, nil
}

func (uc *ContentUsecase) Delete(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) error {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, kind, id, actor.ID); err != nil {
		return err
	}

	uc.publish(ctx, domain.ChangeEvent{
		Collection: kind,
		ContentID:  id,
		Action:     domain.ActionDelete,
		Actor:      actor.ID,
		Timestamp:  uc.now(),
	})

	return nil
}

func (uc *ContentUsecase) History(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) ([]domain.HistoryEntry, error) {
	if err := requireRole(actor, domain.RoleEditor); err != nil {
		return nil, err
	}
	return uc.repo.History(ctx, kind, id)
}

func (uc *ContentUsecase) ListConflicts(ctx context.Context, actor domain.Actor) ([]domain.ConflictRecord, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return uc.conflicts.ListUnresolved(ctx)
}

// ResolveConflict settles a manually-deferred conflict. keepLocal applies the
// recorded local change through the repository; otherwise the server copy
// stands and the record is only closed.
func (uc *ContentUsecase) ResolveConflict(ctx context.Context, actor domain.Actor, conflictID string, keepLocal bool) (domain.Item, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return domain.Item{}, err
	}

	rec, err := uc.conflicts.Get(ctx, conflictID)
	if err != nil {
		return domain.Item{}, err
	}
	if rec.Resolved {
		return domain.Item{}, domain.ValidationError{Field: "conflictId", Reason: "already resolved"}
	}

	current, err := uc.repo.Get(ctx, rec.Collection, rec.ContentID)
	if err != nil {
		return domain.Item{}, err
	}

	result := current
	if keepLocal {
		serverFields, err := domain.PayloadFields(current.Fields)
		if err != nil {
			return domain.Item{}, err
		}
		fields := domain.MergeFields(serverFields, rec.LocalChange)
		payload, err := domain.PayloadFromFields(rec.Collection, fields)
		if err != nil {
			return domain.Item{}, err
		}
		if err := payload.Validate(); err != nil {
			return domain.Item{}, err
		}

		now := uc.now()
		item := current
		item.Fields = payload
		item.UpdatedAt = now
		item.UpdatedBy = actor.ID

		result, err = uc.repo.Update(ctx, item, changedFieldNames(rec.LocalChange))
		if err != nil {
			return domain.Item{}, err
		}

		uc.publish(ctx, domain.ChangeEvent{
			Collection: rec.Collection,
			ContentID:  rec.ContentID,
			Action:     domain.ActionUpdate,
			Actor:      actor.ID,
			Timestamp:  now,
			Digest:     domain.PayloadDigest(result.Fields),
		})
	}

	if err := uc.conflicts.MarkResolved(ctx, conflictID, actor.ID); err != nil {
		return domain.Item{}, err
	}

	return result, nil
}

// publish failures never fail the write; the mutation is already committed.
func (uc *ContentUsecase) publish(ctx context.Context, ev domain.ChangeEvent) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "failed to publish change event",
			slog.String("error", err.Error()),
			slog.String("collection", string(ev.Collection)),
			slog.String("module", "content"),
		)
	}
}

func changedFieldNames(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
