package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"engagement-service/internal/domain"
	"engagement-service/internal/mailbox"
	"engagement-service/internal/repository"
	"engagement-service/internal/usecase"
	"engagement-service/pkg/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	clientID   = domain.Identity{ID: "c1", Category: domain.CategoryClientProfile}
	providerID = domain.Identity{ID: "p1", Category: domain.CategoryProviderIndividual}
)

type fixture struct {
	store  *mailbox.Store
	engine *usecase.EngagementUsecase
}

func newFixture() *fixture {
	logger := zap.NewNop()
	store := mailbox.NewStore(repository.NewMemoryMailbox(), logger)
	dispatcher := usecase.NewDispatcher(store, logger)
	gate := usecase.NewRatingDebtGate(store)
	engine := usecase.NewEngagementUsecase(store, repository.NewMemoryReviewLedger(), dispatcher, gate, logger)
	return &fixture{store: store, engine: engine}
}

func (f *fixture) session(owner domain.Identity, role Role) *Orchestrator {
	o := New(f.store, f.engine, owner, role, zap.NewNop())
	o.Start()
	return o
}

func (f *fixture) seedRequest(t *testing.T) *domain.Notification {
	t.Helper()
	sent, err := f.engine.StartRequest(context.Background(), clientID,
		[]domain.Identity{providerID},
		map[string]any{domain.PayloadDescription: "mount shelves"})
	require.NoError(t, err)
	return sent[0]
}

func TestActionTablePerRole(t *testing.T) {
	f := newFixture()
	client := f.session(clientID, RoleClient)
	defer client.Close()
	provider := f.session(providerID, RoleProvider)
	defer provider.Close()

	set, ok := provider.ActionsFor(domain.NoteJobRequest)
	require.True(t, ok)
	assert.Equal(t, ActionAccept, set.Primary)
	assert.Equal(t, ActionReject, set.Secondary)
	assert.Empty(t, set.Tertiary)

	set, ok = client.ActionsFor(domain.NoteContactFollowup)
	require.True(t, ok)
	assert.Equal(t, ActionConfirm, set.Primary)
	assert.Equal(t, ActionReschedule, set.Secondary)
	assert.Equal(t, ActionCancel, set.Tertiary)

	// A client session has no resolution for provider-side types.
	_, ok = client.ActionsFor(domain.NoteJobRequest)
	assert.False(t, ok)
}

func TestVisibleFiltersByRole(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t)

	provider := f.session(providerID, RoleProvider)
	defer provider.Close()

	visible := provider.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, req.ID, visible[0].ID)

	// The same mailbox viewed as a client shows nothing actionable.
	asClient := f.session(providerID, RoleClient)
	defer asClient.Close()
	assert.Empty(t, asClient.Visible())
}

func TestSnapshotTracksMailbox(t *testing.T) {
	f := newFixture()
	provider := f.session(providerID, RoleProvider)
	defer provider.Close()

	assert.Empty(t, provider.Visible())
	assert.Equal(t, 0, provider.UnreadCount())

	req := f.seedRequest(t)
	require.Len(t, provider.Visible(), 1)
	assert.Equal(t, 1, provider.UnreadCount())

	require.NoError(t, f.store.MarkRead(context.Background(), providerID, req.ID))
	assert.Equal(t, 0, provider.UnreadCount())
}

func TestDoRejectsDoubleSubmission(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t)

	provider := f.session(providerID, RoleProvider)
	defer provider.Close()

	release := make(chan struct{})
	entered := make(chan struct{})

	// Hold the submission inside the engine by blocking the snapshot push its
	// dispatch triggers (the initial subscribe push passes through), then race
	// a second submission against it.
	var pushes atomic.Int32
	f.store.Subscribe(clientID, func([]*domain.Notification) {
		if pushes.Add(1) == 2 {
			close(entered)
			<-release
		}
	})

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = provider.Do(context.Background(), ActionAccept, req.ID, DoArgs{})
	}()

	<-entered
	_, secondErr := provider.Do(context.Background(), ActionAccept, req.ID, DoArgs{})
	assert.ErrorIs(t, secondErr, xerrors.ErrActionInFlight)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)

	// The flag is released after completion: retrying now reports staleness
	// instead of in-flight.
	_, err := provider.Do(context.Background(), ActionAccept, req.ID, DoArgs{})
	assert.ErrorIs(t, err, xerrors.ErrStaleAction)
}

func TestDoReleasesFlagOnFailure(t *testing.T) {
	f := newFixture()
	provider := f.session(providerID, RoleProvider)
	defer provider.Close()

	_, err := provider.Do(context.Background(), ActionAccept, 404, DoArgs{})
	assert.ErrorIs(t, err, xerrors.ErrStaleAction)

	// Same error again, not ErrActionInFlight: the flag did not stick.
	_, err = provider.Do(context.Background(), ActionAccept, 404, DoArgs{})
	assert.ErrorIs(t, err, xerrors.ErrStaleAction)
}

func TestRateWithoutRatingsHandsOff(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t)
	provider := f.session(providerID, RoleProvider)
	defer provider.Close()

	_, err := provider.Do(context.Background(), ActionAccept, req.ID, DoArgs{})
	require.NoError(t, err)

	client := f.session(clientID, RoleClient)
	defer client.Close()
	accept := client.Visible()[0]

	// Walk to the rating step.
	followup, err := f.store.Append(context.Background(), clientID, &domain.Notification{
		Type: domain.NoteContactFollowup,
		From: &domain.SenderRef{ID: providerID.ID, Category: providerID.Category},
		Payload: map[string]any{
			domain.PayloadOriginalNotifID: accept.ID,
		},
	})
	require.NoError(t, err)
	res, err := client.Do(context.Background(), ActionConfirm, followup.ID, DoArgs{})
	require.NoError(t, err)
	confirmed := res.Notifications[0]

	// First Rate tap: no ratings yet, so the result is a handoff reference,
	// and the notification survives.
	res, err = provider.Do(context.Background(), ActionRate, confirmed.ID, DoArgs{})
	require.NoError(t, err)
	require.NotNil(t, res.Handoff)
	assert.Equal(t, clientID.ID, res.Handoff.SubjectID)
	assert.Equal(t, confirmed.ID, res.Handoff.OriginalNotifID)
	require.Len(t, provider.Visible(), 1)

	// The review screen submits: review recorded, node consumed, follow-on
	// request dispatched to the client.
	res, err = provider.Do(context.Background(), ActionRate, res.Handoff.OriginalNotifID, DoArgs{
		Ratings: map[string]int{"communication": 5},
		Comment: "easy to work with",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Review)
	assert.Equal(t, domain.ReviewAsProvider, res.Review.Context)
	assert.Empty(t, provider.Visible())
	require.Len(t, client.Visible(), 1)
	assert.Equal(t, domain.NoteRatingRequest, client.Visible()[0].Type)
}

func TestCloseDropsLatePushes(t *testing.T) {
	f := newFixture()
	provider := f.session(providerID, RoleProvider)

	f.seedRequest(t)
	require.Len(t, provider.Visible(), 1)

	provider.Close()
	provider.Close() // idempotent

	f.seedRequest(t)
	assert.Len(t, provider.Visible(), 1, "no snapshot updates after Close")

	// Actions after Close are dropped without touching the stores.
	res, err := provider.Do(context.Background(), ActionDelete, provider.Visible()[0].ID, DoArgs{})
	assert.Nil(t, res)
	assert.NoError(t, err)
}

func TestStartRequestThroughSession(t *testing.T) {
	f := newFixture()
	client := f.session(clientID, RoleClient)
	defer client.Close()
	provider := f.session(providerID, RoleProvider)
	defer provider.Close()

	res, err := client.StartRequest(context.Background(), DoArgs{
		Providers: []domain.Identity{providerID},
		Payload:   map[string]any{domain.PayloadDescription: "assemble wardrobe"},
	})
	require.NoError(t, err)
	require.Len(t, res.Notifications, 1)
	require.Len(t, provider.Visible(), 1)
	assert.Equal(t, domain.NoteJobRequest, provider.Visible()[0].Type)
}
