package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/unioncms/unioncms/internal/domain"
	"github.com/unioncms/unioncms/internal/usecase"
)

const localIDPrefix = "local-"

// QueuedOp is one locally-originated write awaiting delivery to the remote
// store.
type QueuedOp struct {
	Action   domain.Action
	Kind     domain.Kind
	ID       string
	Item     domain.Item
	Changed  []string
	Actor    string
	Attempts int
}

// OpError surfaces a queued operation that permanently failed and was dropped
// from the queue.
type OpError struct {
	Op  QueuedOp
	Err error
}

// Subscriber delivers change events for a set of collections. The returned
// cancel function stops delivery.
type Subscriber interface {
	Subscribe(ctx context.Context, kinds []domain.Kind, fn func(domain.ChangeEvent)) (context.CancelFunc, error)
}

// Options tunes queue replay.
type Options struct {
	// RetryLimit bounds delivery attempts per queued operation. Default 3.
	RetryLimit int
	// Backoff returns the wait before the given retry attempt.
	Backoff func(attempt int) time.Duration
}

// Syncer keeps the local content cache in step with the remote store and
// replays locally-originated writes, oldest first, when connectivity resumes.
// It is constructed and torn down explicitly; there is no package-level state.
type Syncer struct {
	remote usecase.ContentRepository
	cache  *Cache
	opts   Options

	mu       stdsync.Mutex
	queue    []QueuedOp
	online   bool
	lastSync time.Time
	idAlias  map[string]string
	cancel   context.CancelFunc

	errs chan OpError
}

func NewSyncer(remote usecase.ContentRepository, cache *Cache, opts Options) *Syncer {
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = 3
	}
	if opts.Backoff == nil {
		opts.Backoff = func(attempt int) time.Duration {
			return time.Duration(attempt) * 200 * time.Millisecond
		}
	}
	return &Syncer{
		remote:  remote,
		cache:   cache,
		opts:    opts,
		online:  true,
		idAlias: map[string]string{},
		errs:    make(chan OpError, 16),
	}
}

// Start performs the initial full refresh and, when a subscriber is given,
// begins reacting to store-pushed change notifications per collection.
func (s *Syncer) Start(ctx context.Context, sub Subscriber) error {
	if err := s.RefreshAll(ctx); err != nil {
		return err
	}
	if sub == nil {
		return nil
	}

	cancel, err := sub.Subscribe(ctx, domain.Kinds(), func(ev domain.ChangeEvent) {
		if err := s.refreshCollection(ctx, ev.Collection); err != nil {
			slog.ErrorContext(ctx, "failed to refresh collection",
				slog.String("error", err.Error()),
				slog.String("collection", string(ev.Collection)),
				slog.String("module", "sync"),
			)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return nil
}

// Errors exposes queued operations that exhausted their retries or were
// rejected outright. Dropped operations are never reinstated.
func (s *Syncer) Errors() <-chan OpError {
	return s.errs
}

func (s *Syncer) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *Syncer) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// SetOnline records a connectivity transition. Going offline freezes the
// queue; coming back online drains it oldest-first.
func (s *Syncer) SetOnline(ctx context.Context, online bool) {
	s.mu.Lock()
	was := s.online
	s.online = online
	s.mu.Unlock()

	if online && !was {
		s.drain(ctx)
	}
}

// RefreshAll rebuilds the cache from the remote store, one collection at a
// time.
func (s *Syncer) RefreshAll(ctx context.Context) error {
	for _, kind := range domain.Kinds() {
		if err := s.refreshCollection(ctx, kind); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *Syncer) refreshCollection(ctx context.Context, kind domain.Kind) error {
	items, err := s.remote.List(ctx, kind, usecase.ListQuery{Limit: 200})
	if err != nil {
		return err
	}
	s.cache.ReplaceCollection(kind, items)
	return nil
}

// Get serves one document, preferring the local cache. A miss falls through
// to the remote store and primes the cache with the result.
func (s *Syncer) Get(ctx context.Context, kind domain.Kind, id string) (domain.Item, error) {
	if item, ok := s.cache.Item(kind, id); ok {
		return item, nil
	}
	item, err := s.remote.Get(ctx, kind, id)
	if err != nil {
		return domain.Item{}, err
	}
	s.cache.Upsert(item)
	return item, nil
}

// Create writes through to the remote store when online; offline it assigns
// a provisional local id and queues the operation. The provisional id is
// remapped to the store-assigned id during replay.
func (s *Syncer) Create(ctx context.Context, item domain.Item) (domain.Item, error) {
	if s.Online() {
		created, err := s.remote.Create(ctx, item)
		if err != nil {
			return domain.Item{}, err
		}
		s.cache.Upsert(created)
		s.touch()
		return created, nil
	}

	item.ID = localIDPrefix + ulid.Make().String()
	s.enqueue(QueuedOp{
		Action: domain.ActionCreate,
		Kind:   item.Kind,
		ID:     item.ID,
		Item:   item,
		Actor:  item.CreatedBy,
	})
	s.cache.Upsert(item)
	return item, nil
}

func (s *Syncer) Update(ctx context.Context, item domain.Item, changed []string) (domain.Item, error) {
	if s.Online() {
		updated, err := s.remote.Update(ctx, item, changed)
		if err != nil {
			return domain.Item{}, err
		}
		s.cache.Upsert(updated)
		s.touch()
		return updated, nil
	}

	s.enqueue(QueuedOp{
		Action:  domain.ActionUpdate,
		Kind:    item.Kind,
		ID:      item.ID,
		Item:    item,
		Changed: changed,
		Actor:   item.UpdatedBy,
	})
	s.cache.Upsert(item)
	return item, nil
}

func (s *Syncer) Delete(ctx context.Context, kind domain.Kind, id string, actor string) error {
	if s.Online() {
		if err := s.remote.Delete(ctx, kind, id, actor); err != nil {
			return err
		}
		s.cache.Remove(kind, id)
		s.touch()
		return nil
	}

	s.enqueue(QueuedOp{
		Action: domain.ActionDelete,
		Kind:   kind,
		ID:     id,
		Actor:  actor,
	})
	s.cache.Remove(kind, id)
	return nil
}

// DropPending discards queued operations for one document before they are
// attempted, e.g. when the user discards an offline-created draft.
func (s *Syncer) DropPending(kind domain.Kind, id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.queue[:0]
	dropped := 0
	for _, op := range s.queue {
		if op.Kind == kind && op.ID == id {
			dropped++
			continue
		}
		kept = append(kept, op)
	}
	s.queue = kept
	return dropped
}

// Close cancels the subscription, drains the queue while still online, and
// discards the cache. The cache is a projection of the remote store; a later
// Start rebuilds it.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	online := s.online
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if online {
		s.drain(ctx)
	}

	s.mu.Lock()
	remaining := len(s.queue)
	s.mu.Unlock()
	if remaining > 0 {
		return fmt.Errorf("%d queued operations not delivered", remaining)
	}

	s.cache.Clear()
	return nil
}

func (s *Syncer) enqueue(op QueuedOp) {
	s.mu.Lock()
	s.queue = append(s.queue, op)
	s.mu.Unlock()
}

func (s *Syncer) touch() {
	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()
}

// drain replays queued operations in enqueue order. Order is preserved per
// document; operations that permanently fail are surfaced and dropped.
func (s *Syncer) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || !s.online {
			s.mu.Unlock()
			break
		}
		op := s.queue[0]
		s.queue = s.queue[1:]
		alias, ok := s.idAlias[op.ID]
		s.mu.Unlock()

		if ok {
			op.ID = alias
			op.Item.ID = alias
		}

		if err := s.deliver(ctx, &op); err != nil {
			s.report(ctx, op, err)
		}
	}

	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()
}

func (s *Syncer) deliver(ctx context.Context, op *QueuedOp) error {
	var err error
	for attempt := 1; attempt <= s.opts.RetryLimit; attempt++ {
		op.Attempts = attempt
		err = s.apply(ctx, op)
		if err == nil {
			return nil
		}
		if permanent(err) {
			return err
		}
		if attempt < s.opts.RetryLimit {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.opts.Backoff(attempt)):
			}
		}
	}
	return err
}

func (s *Syncer) apply(ctx context.Context, op *QueuedOp) error {
	switch op.Action {
	case domain.ActionCreate:
		item := op.Item
		localID := item.ID
		item.ID = "" // the store assigns the real id
		created, err := s.remote.Create(ctx, item)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.idAlias[localID] = created.ID
		s.mu.Unlock()
		s.cache.Remove(op.Kind, localID)
		s.cache.Upsert(created)
		return nil
	case domain.ActionUpdate:
		updated, err := s.remote.Update(ctx, op.Item, op.Changed)
		if err != nil {
			return err
		}
		s.cache.Upsert(updated)
		return nil
	case domain.ActionDelete:
		if err := s.remote.Delete(ctx, op.Kind, op.ID, op.Actor); err != nil {
			return err
		}
		s.cache.Remove(op.Kind, op.ID)
		return nil
	default:
		return fmt.Errorf("unknown action %q", op.Action)
	}
}

func (s *Syncer) report(ctx context.Context, op QueuedOp, err error) {
	slog.ErrorContext(ctx, "queued operation dropped",
		slog.String("error", err.Error()),
		slog.String("action", string(op.Action)),
		slog.String("collection", string(op.Kind)),
		slog.String("contentId", op.ID),
		slog.String("module", "sync"),
	)
	select {
	case s.errs <- OpError{Op: op, Err: err}:
	default:
	}
}

// permanent reports business rejections that retrying cannot fix.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrPermission)
}
