package usecase

import (
	"context"
	"errors"
	"time"

	"engagement-service/internal/domain"
	"engagement-service/internal/helpers"
	"engagement-service/internal/mailbox"
	"engagement-service/internal/repository"
	"engagement-service/pkg/xerrors"

	"go.uber.org/zap"
)

// cancelAdvisory is the one-time local message shown to a client after
// cancelling a follow-up. It never leaves the client's session.
const cancelAdvisory = "The agreement was cancelled. The provider keeps appearing in your contacted list; you can reach out again at any time."

// EngagementUsecase is the transition engine: one handler per inbound
// notification type per role. Each handler is a bounded sequence of store
// operations, issued sequentially and awaited one by one. Every removal of a
// chained notification happens before the new notification is dispatched.
//
// There is no cross-mailbox transaction. A crash between a removal and the
// following dispatch leaves the engagement with no active node in either
// mailbox; that gap is logged and accepted, never hidden (the client can
// still reach the provider by other means).
type EngagementUsecase struct {
	store      *mailbox.Store
	reviews    repository.ReviewLedger
	dispatcher *Dispatcher
	gate       *RatingDebtGate
	logger     *zap.Logger
}

func NewEngagementUsecase(
	store *mailbox.Store,
	reviews repository.ReviewLedger,
	dispatcher *Dispatcher,
	gate *RatingDebtGate,
	logger *zap.Logger,
) *EngagementUsecase {
	return &EngagementUsecase{
		store:      store,
		reviews:    reviews,
		dispatcher: dispatcher,
		gate:       gate,
		logger:     logger,
	}
}

// StartRequest broadcasts a job_request from a client to one or more
// providers. Gate-checked: a client with too much rating debt cannot start
// new engagements.
func (uc *EngagementUsecase) StartRequest(ctx context.Context, client domain.Identity, providers []domain.Identity, payload map[string]any) ([]*domain.Notification, error) {
	if client.IsZero() || len(providers) == 0 {
		return nil, xerrors.ErrInvalidInput
	}
	if err := uc.gate.CanEngage(ctx, client); err != nil {
		return nil, err
	}
	return uc.dispatcher.Send(ctx, domain.NoteJobRequest, providers, client, payload)
}

// AcceptRequest handles the provider's Accept on a job_request: remove the
// request from the provider's mailbox, then dispatch job_accept to the
// client. Gate-checked on the provider side.
func (uc *EngagementUsecase) AcceptRequest(ctx context.Context, provider domain.Identity, notifID int64, payload map[string]any) (*domain.Notification, error) {
	n, err := uc.loadTyped(ctx, provider, notifID, domain.NoteJobRequest)
	if err != nil {
		return nil, err
	}
	if err := uc.gate.CanEngage(ctx, provider); err != nil {
		return nil, err
	}

	client := n.From
	if client == nil {
		uc.noopUnresolved("accept", n)
		return nil, nil
	}

	if err := uc.store.Remove(ctx, provider, notifID); err != nil {
		return nil, staleOr(err)
	}

	accepted := helpers.BuildPayload(
		stringField(n.Payload, domain.PayloadDescription), "", "", payload)
	sent, err := uc.dispatcher.Send(ctx, domain.NoteJobAccept, []domain.Identity{client.Identity()}, provider, accepted)
	if err != nil {
		uc.partialWarn("accept", notifID, err)
		return nil, err
	}
	return sent[0], nil
}

// RejectRequest removes the job_request without a trace.
func (uc *EngagementUsecase) RejectRequest(ctx context.Context, provider domain.Identity, notifID int64) error {
	if _, err := uc.loadTyped(ctx, provider, notifID, domain.NoteJobRequest); err != nil {
		return err
	}
	return staleOr(uc.store.Remove(ctx, provider, notifID))
}

// Contact records the client's first outreach to the provider behind a
// job_accept. The notification is deliberately NOT removed: it stays until an
// agreement is confirmed or cancelled. The upsert is idempotent per provider.
func (uc *EngagementUsecase) Contact(ctx context.Context, client domain.Identity, notifID int64, via domain.ContactVia) (*domain.ContactPending, error) {
	if !via.Valid() {
		return nil, xerrors.ErrInvalidInput
	}
	n, err := uc.loadTyped(ctx, client, notifID, domain.NoteJobAccept)
	if err != nil {
		return nil, err
	}

	provider := n.From
	if provider == nil {
		uc.noopUnresolved("contact", n)
		return nil, nil
	}

	cp := domain.ContactPending{
		ProviderID:      provider.ID,
		Via:             via,
		FirstClickTS:    time.Now(),
		OriginalNotifID: notifID,
	}
	if err := uc.store.UpsertContactPending(ctx, client, cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// ConfirmAgreement handles the client's Confirm on a contact_followup:
// remove the follow-up, remove the job_accept it chains back to, then
// dispatch agreement_confirmed to the provider.
func (uc *EngagementUsecase) ConfirmAgreement(ctx context.Context, client domain.Identity, followupID int64) (*domain.Notification, error) {
	f, err := uc.loadTyped(ctx, client, followupID, domain.NoteContactFollowup)
	if err != nil {
		return nil, err
	}

	provider := f.From
	if provider == nil {
		uc.noopUnresolved("confirm", f)
		return nil, nil
	}

	if err := uc.store.Remove(ctx, client, followupID); err != nil {
		return nil, staleOr(err)
	}

	// Unwind the chain: the job_accept the follow-up points at goes too.
	if origin, ok := f.OriginalNotifID(); ok {
		if err := uc.store.Remove(ctx, client, origin); err != nil && !errors.Is(err, xerrors.ErrNotFound) {
			uc.partialWarn("confirm", followupID, err)
			return nil, err
		}
	}

	payload := helpers.ChainPayload(f, followupID, nil)
	sent, err := uc.dispatcher.Send(ctx, domain.NoteAgreementConfirmed, []domain.Identity{provider.Identity()}, client, payload)
	if err != nil {
		uc.partialWarn("confirm", followupID, err)
		return nil, err
	}
	return sent[0], nil
}

// RescheduleFollowup defers the follow-up prompt; the notification persists
// with an updated prompt time.
func (uc *EngagementUsecase) RescheduleFollowup(ctx context.Context, client domain.Identity, followupID int64, promptAt time.Time) error {
	if _, err := uc.loadTyped(ctx, client, followupID, domain.NoteContactFollowup); err != nil {
		return err
	}
	patch := map[string]any{domain.PayloadPromptAt: promptAt.Format(time.RFC3339)}
	return staleOr(uc.store.Mutate(ctx, client, followupID, patch))
}

// CancelFollowup flags the follow-up as cancelled rather than deleting it,
// keeping an inspectable trace of the abandoned negotiation. Returns the
// one-time advisory for the client. Cancellation never counts as rating debt.
func (uc *EngagementUsecase) CancelFollowup(ctx context.Context, client domain.Identity, followupID int64) (string, error) {
	if _, err := uc.loadTyped(ctx, client, followupID, domain.NoteContactFollowup); err != nil {
		return "", err
	}
	patch := map[string]any{domain.PayloadStatus: domain.StatusCancelled}
	if err := uc.store.Mutate(ctx, client, followupID, patch); err != nil {
		return "", staleOr(err)
	}
	return cancelAdvisory, nil
}

// SubmitRating consumes an agreement_confirmed (provider rating the client)
// or a rating_request (either direction): append the review, remove the
// consumed node, then dispatch the follow-on rating_request where the
// protocol calls for one.
//
// The dispatch after a rating_request happens ONLY when the review just
// written has context as_user (the client rating a provider). That guard is
// the sole loop-breaker: the provider's as_provider rating never re-triggers
// the request it consumed, so exactly two rating_requests ever exist per
// engagement.
func (uc *EngagementUsecase) SubmitRating(ctx context.Context, author domain.Identity, notifID int64, ratings map[string]int, comment string) (*domain.Review, *domain.Notification, error) {
	n, err := uc.store.Get(ctx, author, notifID)
	if err != nil {
		return nil, nil, staleOr(err)
	}
	if n.Type != domain.NoteAgreementConfirmed && n.Type != domain.NoteRatingRequest {
		return nil, nil, xerrors.ErrInvalidInput
	}

	subject := n.From
	if subject == nil {
		uc.noopUnresolved("rate", n)
		return nil, nil, nil
	}

	review, err := domain.NewReview(subject.Identity(), author, ratingContext(n, author), ratings, comment)
	if err != nil {
		return nil, nil, err
	}
	review.OriginalNotifID = notifID

	appended, err := uc.reviews.AppendReview(ctx, review)
	switch {
	case errors.Is(err, xerrors.ErrDuplicateReview):
		// An earlier attempt recorded the review but the node survived its
		// removal. Resume with the removal instead of double-appending.
		appended, err = review, nil
	case err != nil:
		return nil, nil, &xerrors.DeliveryError{Recipient: subject.Identity().Key(), Err: err}
	}

	if err := uc.store.Remove(ctx, author, notifID); err != nil {
		// The review exists but the node survived. Surfaced, not rolled back;
		// the ledger's uniqueness makes the retry safe.
		uc.partialWarn("rate", notifID, err)
		return appended, nil, staleOr(err)
	}

	var followOn *domain.Notification
	switch {
	case n.Type == domain.NoteAgreementConfirmed:
		// Completion flips to the client's side: ask the client to rate the
		// provider next.
		followOn, err = uc.sendRatingRequest(ctx, subject.Identity(), author, n, notifID, domain.ReviewAsUser)
	case n.Type == domain.NoteRatingRequest && appended.Context == domain.ReviewAsUser:
		followOn, err = uc.sendRatingRequest(ctx, subject.Identity(), author, n, notifID, domain.ReviewAsProvider)
	}
	if err != nil {
		uc.partialWarn("rate", notifID, err)
		return appended, nil, err
	}
	return appended, followOn, nil
}

// Delete prunes any notification node; the engagement simply loses that node.
func (uc *EngagementUsecase) Delete(ctx context.Context, owner domain.Identity, notifID int64) error {
	return staleOr(uc.store.Remove(ctx, owner, notifID))
}

func (uc *EngagementUsecase) sendRatingRequest(ctx context.Context, to, from domain.Identity, prior *domain.Notification, originalID int64, direction domain.ReviewContext) (*domain.Notification, error) {
	payload := helpers.ChainPayload(prior, originalID, map[string]any{
		domain.PayloadDirection: string(direction),
	})
	sent, err := uc.dispatcher.Send(ctx, domain.NoteRatingRequest, []domain.Identity{to}, from, payload)
	if err != nil {
		return nil, err
	}
	return sent[0], nil
}

// loadTyped fetches the target notification, mapping a missing row to
// ErrStaleAction and a type mismatch to ErrInvalidInput. Handlers always load
// before mutating so a second invocation is a no-op, never a duplicate.
func (uc *EngagementUsecase) loadTyped(ctx context.Context, owner domain.Identity, notifID int64, want domain.NoteType) (*domain.Notification, error) {
	n, err := uc.store.Get(ctx, owner, notifID)
	if err != nil {
		return nil, staleOr(err)
	}
	if n.Type != want {
		return nil, xerrors.ErrInvalidInput
	}
	return n, nil
}

// noopUnresolved logs a malformed sender reference. The action becomes a
// no-op; resolution failures never crash the caller.
func (uc *EngagementUsecase) noopUnresolved(action string, n *domain.Notification) {
	uc.logger.Warn("sender unresolved, action dropped",
		zap.String("action", action),
		zap.Int64("notif_id", n.ID),
		zap.String("type", string(n.Type)))
}

func (uc *EngagementUsecase) partialWarn(action string, notifID int64, err error) {
	uc.logger.Warn("handler stopped mid-sequence; engagement may be left without an active node",
		zap.String("action", action),
		zap.Int64("notif_id", notifID),
		zap.Error(err))
}

// ratingContext decides which review collection this rating belongs to: the
// rating_request payload carries the direction; an agreement_confirmed is
// always the provider rating the client.
func ratingContext(n *domain.Notification, author domain.Identity) domain.ReviewContext {
	if n.Type == domain.NoteAgreementConfirmed {
		return domain.ReviewAsProvider
	}
	if dir, ok := n.Payload[domain.PayloadDirection].(string); ok {
		if rc := domain.ReviewContext(dir); rc.Valid() {
			return rc
		}
	}
	if author.Category.IsProvider() {
		return domain.ReviewAsProvider
	}
	return domain.ReviewAsUser
}

func staleOr(err error) error {
	if errors.Is(err, xerrors.ErrNotFound) {
		return xerrors.ErrStaleAction
	}
	return err
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
