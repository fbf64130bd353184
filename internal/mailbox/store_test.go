package mailbox

import (
	"context"
	"strings"
	"testing"

	"engagement-service/internal/domain"
	"engagement-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testOwner = domain.Identity{ID: "u1", Category: domain.CategoryClientProfile}

func newTestStore() *Store {
	return NewStore(repository.NewMemoryMailbox(), zap.NewNop())
}

func appendNote(t *testing.T, s *Store, owner domain.Identity, typ domain.NoteType) *domain.Notification {
	t.Helper()
	n, err := s.Append(context.Background(), owner, &domain.Notification{
		Type:    typ,
		From:    &domain.SenderRef{ID: "sender", Category: domain.CategoryProviderIndividual},
		Payload: map[string]any{domain.PayloadDescription: "x"},
	})
	require.NoError(t, err)
	return n
}

func TestAppendAssignsRequestID(t *testing.T) {
	s := newTestStore()
	n := appendNote(t, s, testOwner, domain.NoteJobRequest)
	assert.True(t, strings.HasPrefix(n.RequestID, "req_"), "got %q", n.RequestID)
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	s := newTestStore()
	appendNote(t, s, testOwner, domain.NoteJobRequest)

	var got []*domain.Notification
	unsub := s.Subscribe(testOwner, func(snapshot []*domain.Notification) {
		got = snapshot
	})
	defer unsub()

	require.Len(t, got, 1)
	assert.Equal(t, domain.NoteJobRequest, got[0].Type)
}

func TestSubscribePushesFullSetOnEveryChange(t *testing.T) {
	s := newTestStore()

	var snapshots [][]*domain.Notification
	unsub := s.Subscribe(testOwner, func(snapshot []*domain.Notification) {
		snapshots = append(snapshots, snapshot)
	})
	defer unsub()

	first := appendNote(t, s, testOwner, domain.NoteJobRequest)
	appendNote(t, s, testOwner, domain.NoteJobAccept)
	require.NoError(t, s.Remove(context.Background(), testOwner, first.ID))

	// Initial empty snapshot plus one full set per mutation.
	require.Len(t, snapshots, 4)
	assert.Len(t, snapshots[0], 0)
	assert.Len(t, snapshots[1], 1)
	assert.Len(t, snapshots[2], 2)
	assert.Len(t, snapshots[3], 1)
	assert.Equal(t, domain.NoteJobAccept, snapshots[3][0].Type)
}

func TestSubscribeIsScopedToOwner(t *testing.T) {
	s := newTestStore()
	other := domain.Identity{ID: "u2", Category: domain.CategoryProviderBusiness}

	calls := 0
	unsub := s.Subscribe(testOwner, func([]*domain.Notification) { calls++ })
	defer unsub()

	appendNote(t, s, other, domain.NoteJobRequest)
	assert.Equal(t, 1, calls, "another owner's change must not reach this subscriber")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := newTestStore()

	calls := 0
	unsub := s.Subscribe(testOwner, func([]*domain.Notification) { calls++ })
	require.Equal(t, 1, calls)

	unsub()
	unsub() // second call is a no-op

	appendNote(t, s, testOwner, domain.NoteJobRequest)
	assert.Equal(t, 1, calls)
}

func TestContactPendingWriteDoesNotPush(t *testing.T) {
	s := newTestStore()

	calls := 0
	unsub := s.Subscribe(testOwner, func([]*domain.Notification) { calls++ })
	defer unsub()

	err := s.UpsertContactPending(context.Background(), testOwner, domain.ContactPending{
		ProviderID: "p1",
		Via:        domain.ContactWhatsapp,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "contact audit writes change no mailbox")

	pending, err := s.ListContactPending(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestMarkReadPushesAndCountsDown(t *testing.T) {
	s := newTestStore()
	n := appendNote(t, s, testOwner, domain.NoteRatingRequest)

	unread, err := s.CountUnread(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	var last []*domain.Notification
	unsub := s.Subscribe(testOwner, func(snapshot []*domain.Notification) { last = snapshot })
	defer unsub()

	require.NoError(t, s.MarkRead(context.Background(), testOwner, n.ID))

	require.Len(t, last, 1)
	assert.True(t, last[0].Read)
	unread, err = s.CountUnread(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
}
