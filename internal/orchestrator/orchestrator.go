// Package orchestrator is the per-session consumer of one identity's
// mailbox. It owns only transient UI state: the current snapshot, and which
// notification has an action in flight. Protocol state lives in the stores.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"engagement-service/internal/domain"
	"engagement-service/internal/mailbox"
	"engagement-service/internal/usecase"
	"engagement-service/pkg/xerrors"

	"go.uber.org/zap"
)

// Role is the side of the engagement the session is currently acting as.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

// Action is a user-selectable choice on a notification.
type Action string

const (
	ActionAccept     Action = "accept"
	ActionReject     Action = "reject"
	ActionContact    Action = "contact"
	ActionConfirm    Action = "confirm"
	ActionReschedule Action = "reschedule"
	ActionCancel     Action = "cancel"
	ActionRate       Action = "rate"
	ActionDelete     Action = "delete"
)

// ActionSet is the static primary/secondary/tertiary resolution for one
// notification type. Empty slots mean the slot is absent.
type ActionSet struct {
	Primary   Action
	Secondary Action
	Tertiary  Action
}

var roleTypes = map[Role][]domain.NoteType{
	RoleClient:   {domain.NoteJobAccept, domain.NoteContactFollowup, domain.NoteRatingRequest},
	RoleProvider: {domain.NoteJobRequest, domain.NoteAgreementConfirmed, domain.NoteRatingRequest},
}

var actionTable = map[Role]map[domain.NoteType]ActionSet{
	RoleClient: {
		domain.NoteJobAccept:       {Primary: ActionContact, Secondary: ActionDelete},
		domain.NoteContactFollowup: {Primary: ActionConfirm, Secondary: ActionReschedule, Tertiary: ActionCancel},
		domain.NoteRatingRequest:   {Primary: ActionRate, Secondary: ActionDelete},
	},
	RoleProvider: {
		domain.NoteJobRequest:         {Primary: ActionAccept, Secondary: ActionReject},
		domain.NoteAgreementConfirmed: {Primary: ActionRate, Secondary: ActionDelete},
		domain.NoteRatingRequest:      {Primary: ActionRate, Secondary: ActionDelete},
	},
}

// DoArgs carries the per-action inputs the UI collects.
type DoArgs struct {
	Providers []domain.Identity
	Payload   map[string]any
	Via       domain.ContactVia
	PromptAt  time.Time
	Ratings   map[string]int
	Comment   string
}

// RatingHandoff is the contract with the external review-collection screen:
// that screen must call SubmitRating exactly once with these references.
type RatingHandoff struct {
	SubjectID       string
	OriginalNotifID int64
}

// Result is whatever an action produced that the UI needs to show.
type Result struct {
	Notifications []*domain.Notification
	Contact       *domain.ContactPending
	Review        *domain.Review
	Advisory      string
	Handoff       *RatingHandoff
}

type Orchestrator struct {
	store  *mailbox.Store
	engine *usecase.EngagementUsecase
	owner  domain.Identity
	role   Role
	logger *zap.Logger

	mu       sync.Mutex
	snapshot []*domain.Notification
	inflight map[int64]bool
	unsub    func()
	closed   bool
}

func New(store *mailbox.Store, engine *usecase.EngagementUsecase, owner domain.Identity, role Role, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		engine:   engine,
		owner:    owner,
		role:     role,
		logger:   logger,
		inflight: make(map[int64]bool),
	}
}

// Start subscribes to the owner's mailbox. The first snapshot arrives before
// Start returns.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	if o.closed || o.unsub != nil {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	unsub := o.store.Subscribe(o.owner, o.onSnapshot)

	o.mu.Lock()
	if o.closed {
		// Closed while subscribing; tear the subscription straight down.
		o.mu.Unlock()
		unsub()
		return
	}
	o.unsub = unsub
	o.mu.Unlock()
}

// Close unsubscribes and drops any pushes that race with teardown. Safe to
// call mid-operation; in-flight handlers finish against the stores.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	unsub := o.unsub
	o.unsub = nil
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (o *Orchestrator) onSnapshot(snapshot []*domain.Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.snapshot = snapshot
}

// Visible returns the subset of the current snapshot relevant to the acting
// role, newest first.
func (o *Orchestrator) Visible() []*domain.Notification {
	o.mu.Lock()
	snapshot := o.snapshot
	o.mu.Unlock()

	relevant := make(map[domain.NoteType]bool, 3)
	for _, t := range roleTypes[o.role] {
		relevant[t] = true
	}

	var out []*domain.Notification
	for _, n := range snapshot {
		if relevant[n.Type] {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount is a pure fold over the current snapshot; there is no
// incrementally mutated counter to drift from the underlying set.
func (o *Orchestrator) UnreadCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	count := 0
	for _, n := range o.snapshot {
		if !n.Read {
			count++
		}
	}
	return count
}

// ActionsFor resolves the static action set for a notification type under
// the current role.
func (o *Orchestrator) ActionsFor(t domain.NoteType) (ActionSet, bool) {
	set, ok := actionTable[o.role][t]
	return set, ok
}

// Do runs one user-selected action through the transition engine. A second
// submission for the same notification while one is in flight is rejected;
// the in-flight flag is always released, success or failure, so a failed
// handler never permanently disables its action.
func (o *Orchestrator) Do(ctx context.Context, action Action, notifID int64, args DoArgs) (*Result, error) {
	if notifID != 0 {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return nil, nil
		}
		if o.inflight[notifID] {
			o.mu.Unlock()
			return nil, xerrors.ErrActionInFlight
		}
		o.inflight[notifID] = true
		o.mu.Unlock()

		defer func() {
			o.mu.Lock()
			delete(o.inflight, notifID)
			o.mu.Unlock()
		}()
	}

	switch action {
	case ActionAccept:
		n, err := o.engine.AcceptRequest(ctx, o.owner, notifID, args.Payload)
		if err != nil {
			return nil, err
		}
		return &Result{Notifications: wrap(n)}, nil

	case ActionReject:
		return &Result{}, o.engine.RejectRequest(ctx, o.owner, notifID)

	case ActionContact:
		cp, err := o.engine.Contact(ctx, o.owner, notifID, args.Via)
		if err != nil {
			return nil, err
		}
		return &Result{Contact: cp}, nil

	case ActionConfirm:
		n, err := o.engine.ConfirmAgreement(ctx, o.owner, notifID)
		if err != nil {
			return nil, err
		}
		return &Result{Notifications: wrap(n)}, nil

	case ActionReschedule:
		return &Result{}, o.engine.RescheduleFollowup(ctx, o.owner, notifID, args.PromptAt)

	case ActionCancel:
		advisory, err := o.engine.CancelFollowup(ctx, o.owner, notifID)
		if err != nil {
			return nil, err
		}
		return &Result{Advisory: advisory}, nil

	case ActionRate:
		// Without collected ratings this is the navigation trigger: hand off
		// to the external review screen, which calls SubmitRating exactly
		// once.
		if args.Ratings == nil {
			n, err := o.store.Get(ctx, o.owner, notifID)
			if err != nil {
				return nil, err
			}
			if n.From == nil {
				o.logger.Warn("rating handoff dropped, sender unresolved", zap.Int64("notif_id", notifID))
				return &Result{}, nil
			}
			return &Result{Handoff: &RatingHandoff{SubjectID: n.From.ID, OriginalNotifID: notifID}}, nil
		}
		review, followOn, err := o.engine.SubmitRating(ctx, o.owner, notifID, args.Ratings, args.Comment)
		if err != nil {
			return nil, err
		}
		return &Result{Review: review, Notifications: wrap(followOn)}, nil

	case ActionDelete:
		return &Result{}, o.engine.Delete(ctx, o.owner, notifID)
	}

	return nil, xerrors.ErrInvalidInput
}

// StartRequest is the one action not bound to an existing notification.
func (o *Orchestrator) StartRequest(ctx context.Context, args DoArgs) (*Result, error) {
	sent, err := o.engine.StartRequest(ctx, o.owner, args.Providers, args.Payload)
	if err != nil {
		return nil, err
	}
	return &Result{Notifications: sent}, nil
}

func wrap(n *domain.Notification) []*domain.Notification {
	if n == nil {
		return nil
	}
	return []*domain.Notification{n}
}
