package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"engagement-service/internal/domain"
	"engagement-service/pkg/id"
	"engagement-service/pkg/xerrors"
)

// memMailbox is the in-memory Mailbox used by tests and single-node dev runs.
// Same contract as the pgx implementation, including ErrNotFound on
// zero-row removals (the stale-action signal).
type memMailbox struct {
	mu      sync.RWMutex
	sf      *id.Snowflake
	boxes   map[string]map[int64]*domain.Notification
	contact map[string]map[string]*domain.ContactPending
}

func NewMemoryMailbox() Mailbox {
	sf, err := id.NewSnowflake(1)
	if err != nil {
		panic(err)
	}
	return &memMailbox{
		sf:      sf,
		boxes:   make(map[string]map[int64]*domain.Notification),
		contact: make(map[string]map[string]*domain.ContactPending),
	}
}

func (m *memMailbox) Append(_ context.Context, owner domain.Identity, n *domain.Notification) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := n.Clone()
	stored.ID = m.sf.Generate()
	stored.Owner = owner
	stored.CreatedAt = time.Now()
	if stored.RequestID == "" {
		stored.RequestID = id.GenerateULID("req")
	}
	// Old writers carried the sender inside the payload; resolve once here so
	// nothing downstream sees the legacy form.
	if stored.From == nil {
		stored.From = domain.ResolveSender(stored.Payload)
	}

	box, ok := m.boxes[owner.Key()]
	if !ok {
		box = make(map[int64]*domain.Notification)
		m.boxes[owner.Key()] = box
	}
	box[stored.ID] = stored

	return stored.Clone(), nil
}

func (m *memMailbox) Get(_ context.Context, owner domain.Identity, notifID int64) (*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n, ok := m.boxes[owner.Key()][notifID]; ok {
		return n.Clone(), nil
	}
	return nil, xerrors.ErrNotFound
}

func (m *memMailbox) Remove(_ context.Context, owner domain.Identity, notifID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	box := m.boxes[owner.Key()]
	if _, ok := box[notifID]; !ok {
		return xerrors.ErrNotFound
	}
	delete(box, notifID)
	return nil
}

func (m *memMailbox) Mutate(_ context.Context, owner domain.Identity, notifID int64, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.boxes[owner.Key()][notifID]
	if !ok {
		return xerrors.ErrNotFound
	}
	if n.Payload == nil {
		n.Payload = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		n.Payload[k] = v
	}
	return nil
}

func (m *memMailbox) List(_ context.Context, owner domain.Identity) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	box := m.boxes[owner.Key()]
	out := make([]*domain.Notification, 0, len(box))
	for _, n := range box {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memMailbox) MarkRead(_ context.Context, owner domain.Identity, notifID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.boxes[owner.Key()][notifID]
	if !ok || n.Read {
		return xerrors.ErrNotFound
	}
	n.Read = true
	return nil
}

func (m *memMailbox) CountUnread(_ context.Context, owner domain.Identity) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, n := range m.boxes[owner.Key()] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *memMailbox) UpsertContactPending(_ context.Context, owner domain.Identity, cp domain.ContactPending) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byProvider, ok := m.contact[owner.Key()]
	if !ok {
		byProvider = make(map[string]*domain.ContactPending)
		m.contact[owner.Key()] = byProvider
	}
	// First click wins.
	if _, exists := byProvider[cp.ProviderID]; !exists {
		stored := cp
		byProvider[cp.ProviderID] = &stored
	}
	return nil
}

func (m *memMailbox) ListContactPending(_ context.Context, owner domain.Identity) ([]*domain.ContactPending, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byProvider := m.contact[owner.Key()]
	out := make([]*domain.ContactPending, 0, len(byProvider))
	for _, cp := range byProvider {
		copied := *cp
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FirstClickTS.After(out[j].FirstClickTS)
	})
	return out, nil
}

// memReviews is the in-memory ReviewLedger counterpart.
type memReviews struct {
	mu      sync.RWMutex
	nextID  int64
	reviews []*domain.Review
	seen    map[string]struct{}
}

func NewMemoryReviewLedger() ReviewLedger {
	return &memReviews{seen: make(map[string]struct{})}
}

func (m *memReviews) AppendReview(_ context.Context, r *domain.Review) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Same uniqueness contract as the pg unique index: one review per
	// (author, context, consumed notification).
	key := fmt.Sprintf("%s|%s|%s|%d", r.AuthorCategory, r.AuthorID, r.Context, r.OriginalNotifID)
	if _, dup := m.seen[key]; dup {
		return nil, xerrors.ErrDuplicateReview
	}
	m.seen[key] = struct{}{}

	m.nextID++
	stored := *r
	stored.ID = m.nextID
	stored.CreatedAt = time.Now()
	m.reviews = append(m.reviews, &stored)

	out := stored
	return &out, nil
}

func (m *memReviews) ListReviews(_ context.Context, subject domain.Identity, rc domain.ReviewContext) ([]*domain.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Review
	for i := len(m.reviews) - 1; i >= 0; i-- {
		r := m.reviews[i]
		if r.SubjectID == subject.ID && r.SubjectCategory == subject.Category && r.Context == rc {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}
