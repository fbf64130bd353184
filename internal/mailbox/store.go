// Package mailbox composes the notification repository with a subscription
// hub. Subscribers get the owner's full current set on every change, never
// deltas; consumers diff by filtering, not by assuming ordering between two
// different mailboxes.
package mailbox

import (
	"context"
	"sync"

	"engagement-service/internal/domain"
	"engagement-service/internal/repository"

	"go.uber.org/zap"
)

// Snapshot callback. Invoked synchronously after every successful mutation
// of the subscribed owner's mailbox, and once on subscribe.
type SnapshotFunc func([]*domain.Notification)

type Store struct {
	repo   repository.Mailbox
	logger *zap.Logger

	mu      sync.RWMutex
	nextSub int64
	subs    map[string]map[int64]SnapshotFunc // owner key -> sub id -> callback
}

func NewStore(repo repository.Mailbox, logger *zap.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: logger,
		subs:   make(map[string]map[int64]SnapshotFunc),
	}
}

func (s *Store) Append(ctx context.Context, owner domain.Identity, n *domain.Notification) (*domain.Notification, error) {
	created, err := s.repo.Append(ctx, owner, n)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, owner)
	return created, nil
}

func (s *Store) Get(ctx context.Context, owner domain.Identity, id int64) (*domain.Notification, error) {
	return s.repo.Get(ctx, owner, id)
}

func (s *Store) Remove(ctx context.Context, owner domain.Identity, id int64) error {
	if err := s.repo.Remove(ctx, owner, id); err != nil {
		return err
	}
	s.publish(ctx, owner)
	return nil
}

func (s *Store) Mutate(ctx context.Context, owner domain.Identity, id int64, patch map[string]any) error {
	if err := s.repo.Mutate(ctx, owner, id, patch); err != nil {
		return err
	}
	s.publish(ctx, owner)
	return nil
}

func (s *Store) List(ctx context.Context, owner domain.Identity) ([]*domain.Notification, error) {
	return s.repo.List(ctx, owner)
}

func (s *Store) MarkRead(ctx context.Context, owner domain.Identity, id int64) error {
	if err := s.repo.MarkRead(ctx, owner, id); err != nil {
		return err
	}
	s.publish(ctx, owner)
	return nil
}

func (s *Store) CountUnread(ctx context.Context, owner domain.Identity) (int, error) {
	return s.repo.CountUnread(ctx, owner)
}

func (s *Store) UpsertContactPending(ctx context.Context, owner domain.Identity, cp domain.ContactPending) error {
	// Audit-trail write only; the mailbox set is unchanged, so no push.
	return s.repo.UpsertContactPending(ctx, owner, cp)
}

func (s *Store) ListContactPending(ctx context.Context, owner domain.Identity) ([]*domain.ContactPending, error) {
	return s.repo.ListContactPending(ctx, owner)
}

// Subscribe registers fn for the owner's mailbox and delivers the current
// snapshot immediately. The returned closure unregisters; it is safe to call
// more than once.
func (s *Store) Subscribe(owner domain.Identity, fn SnapshotFunc) func() {
	s.mu.Lock()
	s.nextSub++
	subID := s.nextSub
	key := owner.Key()
	if _, ok := s.subs[key]; !ok {
		s.subs[key] = make(map[int64]SnapshotFunc)
	}
	s.subs[key][subID] = fn
	s.mu.Unlock()

	s.publish(context.Background(), owner)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if subs, ok := s.subs[key]; ok {
				delete(subs, subID)
				if len(subs) == 0 {
					delete(s.subs, key)
				}
			}
		})
	}
}

func (s *Store) publish(ctx context.Context, owner domain.Identity) {
	key := owner.Key()

	s.mu.RLock()
	n := len(s.subs[key])
	s.mu.RUnlock()
	if n == 0 {
		return
	}

	snapshot, err := s.repo.List(ctx, owner)
	if err != nil {
		s.logger.Warn("mailbox snapshot read failed, push skipped",
			zap.String("owner", key),
			zap.Error(err))
		return
	}

	s.mu.RLock()
	fns := make([]SnapshotFunc, 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
