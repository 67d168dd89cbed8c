package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/unioncms/unioncms/internal/domain"
)

// --- mocks ---

type memoryContentRepo struct {
	items  map[string]domain.Item
	nextID int
}

func newMemoryContentRepo() *memoryContentRepo {
	return &memoryContentRepo{items: map[string]domain.Item{}}
}

func contentKey(kind domain.Kind, id string) string {
	return string(kind) + "/" + id
}

func (m *memoryContentRepo) Create(ctx context.Context, item domain.Item) (domain.Item, error) {
	m.nextID++
	item.ID = fmt.Sprintf("doc-%d", m.nextID)
	m.items[contentKey(item.Kind, item.ID)] = item
	return item, nil
}

func (m *memoryContentRepo) Get(ctx context.Context, kind domain.Kind, id string) (domain.Item, error) {
	item, ok := m.items[contentKey(kind, id)]
	if !ok {
		return domain.Item{}, domain.NotFoundError{Resource: "content"}
	}
	return item, nil
}

func (m *memoryContentRepo) Update(ctx context.Context, item domain.Item, changed []string) (domain.Item, error) {
	key := contentKey(item.Kind, item.ID)
	if _, ok := m.items[key]; !ok {
		return domain.Item{}, domain.NotFoundError{Resource: "content"}
	}
	m.items[key] = item
	return item, nil
}

func (m *memoryContentRepo) Delete(ctx context.Context, kind domain.Kind, id string, actor string) error {
	key := contentKey(kind, id)
	if _, ok := m.items[key]; !ok {
		return domain.NotFoundError{Resource: "content"}
	}
	delete(m.items, key)
	return nil
}

func (m *memoryContentRepo) List(ctx context.Context, kind domain.Kind, q ListQuery) ([]domain.Item, error) {
	var out []domain.Item
	for _, item := range m.items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memoryContentRepo) History(ctx context.Context, kind domain.Kind, id string) ([]domain.HistoryEntry, error) {
	return nil, nil
}

type memoryConflictRepo struct {
	records map[string]domain.ConflictRecord
}

func newMemoryConflictRepo() *memoryConflictRepo {
	return &memoryConflictRepo{records: map[string]domain.ConflictRecord{}}
}

func (m *memoryConflictRepo) Save(ctx context.Context, rec domain.ConflictRecord) error {
	m.records[rec.ID] = rec
	return nil
}

func (m *memoryConflictRepo) Get(ctx context.Context, id string) (domain.ConflictRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return domain.ConflictRecord{}, domain.NotFoundError{Resource: "conflict"}
	}
	return rec, nil
}

func (m *memoryConflictRepo) ListUnresolved(ctx context.Context) ([]domain.ConflictRecord, error) {
	var out []domain.ConflictRecord
	for _, rec := range m.records {
		if !rec.Resolved {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryConflictRepo) MarkResolved(ctx context.Context, id string, actor string) error {
	rec, ok := m.records[id]
	if !ok {
		return domain.NotFoundError{Resource: "conflict"}
	}
	rec.Resolved = true
	rec.ResolvedBy = actor
	m.records[id] = rec
	return nil
}

type recordingPublisher struct {
	events []domain.ChangeEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	p.events = append(p.events, ev)
	return nil
}

var (
	admin  = domain.Actor{ID: "actor-admin", DisplayName: "Admin", Role: domain.RoleAdmin}
	editor = domain.Actor{ID: "actor-editor", DisplayName: "Editor", Role: domain.RoleEditor}
	guest  = domain.Actor{ID: "", Role: domain.RoleUnknown}
)

func newContentUsecase(strategy domain.Strategy) (*ContentUsecase, *memoryContentRepo, *memoryConflictRepo, *recordingPublisher) {
	repo := newMemoryContentRepo()
	conflicts := newMemoryConflictRepo()
	pub := &recordingPublisher{}
	uc := NewContentUsecase(repo, conflicts, pub, strategy)
	return uc, repo, conflicts, pub
}

// --- tests ---

func TestCreateStampsEnvelopeAndPreservesFields(t *testing.T) {
	uc, _, _, pub := newContentUsecase(domain.StrategyLastWriteWins)
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }

	article := domain.NewsArticle{Title: "Spring Fair", Body: "Details.", Category: "campus"}
	item, err := uc.Create(context.Background(), editor, domain.KindNews, "", article)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if item.ID == "" {
		t.Fatalf("expected store-assigned id")
	}
	if item.CreatedAt.After(item.UpdatedAt) {
		t.Fatalf("createdAt must be <= updatedAt")
	}
	if item.CreatedBy != editor.ID || item.UpdatedBy != editor.ID {
		t.Fatalf("actor not stamped: %+v", item.Envelope)
	}
	if item.Status != domain.StatusDraft {
		t.Fatalf("empty status must default to draft, got %s", item.Status)
	}

	got, err := uc.Get(context.Background(), domain.KindNews, item.ID)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if got.Fields.(domain.NewsArticle).Title != "Spring Fair" {
		t.Fatalf("fields not preserved: %+v", got.Fields)
	}

	if len(pub.events) != 1 || pub.events[0].Action != domain.ActionCreate {
		t.Fatalf("expected one create event, got %+v", pub.events)
	}
}

func TestCreateValidatesBeforeWrite(t *testing.T) {
	uc, repo, _, _ := newContentUsecase(domain.StrategyLastWriteWins)

	_, err := uc.Create(context.Background(), editor, domain.KindNews, "", domain.NewsArticle{Title: "ab"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(repo.items) != 0 {
		t.Fatalf("invalid payload must never reach the store")
	}
}

func TestCreateRoleGating(t *testing.T) {
	uc, _, _, _ := newContentUsecase(domain.StrategyLastWriteWins)

	contributor := domain.Actor{ID: "actor-c", Role: domain.RoleContributor}
	_, err := uc.Create(context.Background(), contributor, domain.KindNews, "", domain.NewsArticle{Title: "Spring Fair", Body: "x"})
	if !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("contributor must not create news, got %v", err)
	}

	// contact messages come from the public site without a session
	msg := domain.ContactMessage{Name: "Visitor", Email: "v@example.org", Body: "hello"}
	if _, err := uc.Create(context.Background(), guest, domain.KindMessages, "", msg); err != nil {
		t.Fatalf("public message create failed: %v", err)
	}

	_, err = uc.Create(context.Background(), editor, domain.KindSettings, "", domain.Setting{Key: "banner", Value: "on"})
	if !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("settings require admin, got %v", err)
	}
}

func seedArticle(t *testing.T, uc *ContentUsecase, at time.Time) domain.Item {
	t.Helper()
	uc.now = func() time.Time { return at }
	item, err := uc.Create(context.Background(), editor, domain.KindNews, domain.StatusPublished,
		domain.NewsArticle{Title: "Original", Body: "server body", Category: "announcements"})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return item
}

func TestUpdateLastWriteWinsRejectsStaleBase(t *testing.T) {
	uc, _, _, _ := newContentUsecase(domain.StrategyLastWriteWins)

	t0 := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	item := seedArticle(t, uc, t0)

	// another session updated the document at t1
	t1 := t0.Add(time.Minute)
	uc.now = func() time.Time { return t1 }
	_, err := uc.Update(context.Background(), admin, domain.ChangeSet{
		Collection:    domain.KindNews,
		ContentID:     item.ID,
		BaseUpdatedAt: t0,
		Fields:        map[string]any{"title": "Admin Title"},
		Actor:         admin.ID,
	})
	if err != nil {
		t.Fatalf("up-to-date base must proceed: %v", err)
	}

	// the editor still holds the t0 copy
	var conflict domain.ConflictError
	_, err = uc.Update(context.Background(), editor, domain.ChangeSet{
		Collection:    domain.KindNews,
		ContentID:     item.ID,
		BaseUpdatedAt: t0,
		Fields:        map[string]any{"title": "Editor Title"},
		Actor:         editor.ID,
	})
	if !errors.As(err, &conflict) {
		t.Fatalf("stale base must conflict, got %v", err)
	}
	if !conflict.ServerUpdatedAt.Equal(t1) {
		t.Fatalf("conflict must carry the server timestamp, got %v", conflict.ServerUpdatedAt)
	}
}

func TestUpdateMergeKeepsServerOnlyFields(t *testing.T) {
	uc, _, _, _ := newContentUsecase(domain.StrategyMerge)

	t0 := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	item := seedArticle(t, uc, t0)

	t1 := t0.Add(time.Minute)
	uc.now = func() time.Time { return t1 }
	updated, err := uc.Update(context.Background(), editor, domain.ChangeSet{
		Collection:    domain.KindNews,
		ContentID:     item.ID,
		BaseUpdatedAt: t0.Add(-time.Minute), // stale on purpose
		Fields:        map[string]any{"title": "Merged Title"},
		Actor:         editor.ID,
	})
	if err != nil {
		t.Fatalf("merge strategy must always proceed: %v", err)
	}

	article := updated.Fields.(*domain.NewsArticle)
	if article.Title != "Merged Title" {
		t.Fatalf("local field must win: %+v", article)
	}
	if article.Body != "server body" || article.Category != "announcements" {
		t.Fatalf("server-only fields dropped: %+v", article)
	}
	if updated.MergedAt == nil || updated.MergedBy != editor.ID {
		t.Fatalf("merge must be stamped: %+v", updated.Envelope)
	}
	if !updated.CreatedAt.Equal(item.CreatedAt) || updated.CreatedBy != item.CreatedBy {
		t.Fatalf("merge must not touch immutable envelope fields")
	}
}

func TestUpdateManualPersistsConflictAndWithholdsWrite(t *testing.T) {
	uc, repo, conflicts, _ := newContentUsecase(domain.StrategyManual)

	t0 := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	item := seedArticle(t, uc, t0)

	uc.now = func() time.Time { return t0.Add(time.Minute) }
	var manual domain.ManualConflictError
	_, err := uc.Update(context.Background(), editor, domain.ChangeSet{
		Collection:    domain.KindNews,
		ContentID:     item.ID,
		BaseUpdatedAt: t0.Add(-time.Minute),
		Fields:        map[string]any{"title": "Contested Title"},
		Actor:         editor.ID,
	})
	if !errors.As(err, &manual) {
		t.Fatalf("expected ManualConflictError, got %v", err)
	}

	rec, err := conflicts.Get(context.Background(), manual.ConflictID)
	if err != nil {
		t.Fatalf("conflict record not persisted: %v", err)
	}
	if rec.Resolved {
		t.Fatalf("record must start unresolved")
	}
	if rec.LocalChange["title"] != "Contested Title" {
		t.Fatalf("local change not captured: %+v", rec.LocalChange)
	}

	current, _ := repo.Get(context.Background(), domain.KindNews, item.ID)
	if current.Fields.(domain.NewsArticle).Title != "Original" {
		t.Fatalf("write must be withheld until resolution")
	}
}

func TestResolveConflictKeepLocal(t *testing.T) {
	uc, repo, conflicts, _ := newContentUsecase(domain.StrategyManual)

	t0 := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	item := seedArticle(t, uc, t0)

	uc.now = func() time.Time { return t0.Add(time.Minute) }
	_, err := uc.Update(context.Background(), editor, domain.ChangeSet{
		Collection:    domain.KindNews,
		ContentID:     item.ID,
		BaseUpdatedAt: t0.Add(-time.Minute),
		Fields:        map[string]any{"title": "Contested Title"},
		Actor:         editor.ID,
	})
	var manual domain.ManualConflictError
	if !errors.As(err, &manual) {
		t.Fatalf("expected ManualConflictError, got %v", err)
	}

	resolved, err := uc.ResolveConflict(context.Background(), admin, manual.ConflictID, true)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Fields.(*domain.NewsArticle).Title != "Contested Title" {
		t.Fatalf("local change must be applied: %+v", resolved.Fields)
	}

	rec, _ := conflicts.Get(context.Background(), manual.ConflictID)
	if !rec.Resolved || rec.ResolvedBy != admin.ID {
		t.Fatalf("record must be closed: %+v", rec)
	}

	// resolving twice is rejected
	if _, err := uc.ResolveConflict(context.Background(), admin, manual.ConflictID, true); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("double resolve must fail, got %v", err)
	}

	stored, _ := repo.Get(context.Background(), domain.KindNews, item.ID)
	if stored.Fields.(*domain.NewsArticle).Title != "Contested Title" {
		t.Fatalf("resolution must go through the repository")
	}
}

func TestDeleteRequiresAdmin(t *testing.T) {
	uc, _, _, _ := newContentUsecase(domain.StrategyLastWriteWins)
	item := seedArticle(t, uc, time.Now())

	if err := uc.Delete(context.Background(), editor, domain.KindNews, item.ID); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("editor must not delete, got %v", err)
	}
	if err := uc.Delete(context.Background(), admin, domain.KindNews, item.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
	if _, err := uc.Get(context.Background(), domain.KindNews, item.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("document must be gone, got %v", err)
	}
}
