package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"engagement-service/internal/domain"
	"engagement-service/internal/helpers"
	"engagement-service/internal/mailbox"
	"engagement-service/internal/middleware"
	"engagement-service/internal/repository"
	"engagement-service/internal/usecase"
	"engagement-service/pkg/response"
	"engagement-service/pkg/xerrors"
)

type EngagementHandler struct {
	uc      *usecase.EngagementUsecase
	store   *mailbox.Store
	reviews repository.ReviewLedger
}

func NewEngagementHandler(uc *usecase.EngagementUsecase, store *mailbox.Store, reviews repository.ReviewLedger) *EngagementHandler {
	return &EngagementHandler{uc: uc, store: store, reviews: reviews}
}

// ----------------------
// Protocol actions
// ----------------------

type startRequestBody struct {
	Providers   []domain.Identity `json:"providers"`
	Description string            `json:"description"`
	SenderName  string            `json:"senderName"`
	Avatar      string            `json:"avatar"`
	Extra       map[string]any    `json:"extra"`
}

func (h *EngagementHandler) StartRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unknown identity")
		return
	}

	var body startRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	payload := helpers.BuildPayload(body.Description, body.SenderName, body.Avatar, body.Extra)
	sent, err := h.uc.StartRequest(r.Context(), actor, body.Providers, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, sent)
}

func (h *EngagementHandler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, notifID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	var body struct {
		SenderName string `json:"senderName"`
		Avatar     string `json:"avatar"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	overrides := helpers.BuildPayload("", body.SenderName, body.Avatar, nil)
	sent, err := h.uc.AcceptRequest(r.Context(), actor, notifID, overrides)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, sent)
}

func (h *EngagementHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, notifID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.uc.RejectRequest(r.Context(), actor, notifID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EngagementHandler) Contact(w http.ResponseWriter, r *http.Request) {
	actor, notifID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	var body struct {
		Via domain.ContactVia `json:"via"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	cp, err := h.uc.Contact(r.Context(), actor, notifID, body.Via)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cp)
}

func (h *EngagementHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, notifID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	sent, err := h.uc.ConfirmAgreement(r.Context(), actor, notifID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, sent)
}

func (h *EngagementHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, notifID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	var body struct {
		PromptAt time.Time `json:"promptAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PromptAt.IsZero() {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	if err := h.uc.RescheduleFollowup(r.Context(), actor, notifID, body.PromptAt); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EngagementHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, notifID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	advisory, err := h.uc.CancelFollowup(r.Context(), actor, notifID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"advisory": advisory})
}

func (h *EngagementHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	actor, notifID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	var body struct {
		Ratings map[string]int `json:"ratings"`
		Comment string         `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	review, followOn, err := h.uc.SubmitRating(r.Context(), actor, notifID, body.Ratings, body.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"review":   review,
		"dispatch": followOn,
	})
}

func (h *EngagementHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	actor, notifID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.uc.Delete(r.Context(), actor, notifID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----------------------
// Mailbox reads
// ----------------------

func (h *EngagementHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unknown identity")
		return
	}
	items, err := h.store.List(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *EngagementHandler) CountUnread(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unknown identity")
		return
	}
	count, err := h.store.CountUnread(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *EngagementHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	actor, notifID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.store.MarkRead(r.Context(), actor, notifID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EngagementHandler) ListContactPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unknown identity")
		return
	}
	pending, err := h.store.ListContactPending(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, pending)
}

// ----------------------
// Review ledger reads
// ----------------------

func (h *EngagementHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	subject := domain.Identity{
		ID:       r.URL.Query().Get("subject_id"),
		Category: domain.Category(r.URL.Query().Get("subject_category")),
	}
	rc := domain.ReviewContext(r.URL.Query().Get("context"))
	if subject.ID == "" || !subject.Category.Valid() || !rc.Valid() {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	reviews, err := h.reviews.ListReviews(r.Context(), subject, rc)
	if err != nil {
		writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, reviews)
}

// ----------------------
// helpers
// ----------------------

func (h *EngagementHandler) actorAndID(w http.ResponseWriter, r *http.Request) (domain.Identity, int64, bool) {
	actor, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unknown identity")
		return domain.Identity{}, 0, false
	}

	notifID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || notifID <= 0 {
		response.Error(w, http.StatusBadRequest, "invalid notification id")
		return domain.Identity{}, 0, false
	}
	return actor, notifID, true
}

func writeError(w http.ResponseWriter, err error) {
	var delivery *xerrors.DeliveryError
	switch {
	case errors.Is(err, xerrors.ErrStaleAction):
		response.Error(w, http.StatusConflict, "notification no longer exists")
	case errors.Is(err, xerrors.ErrEngagementBlocked):
		response.Error(w, http.StatusLocked, err.Error())
	case errors.Is(err, xerrors.ErrNotFound):
		response.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrEmptyRatings),
		errors.Is(err, xerrors.ErrRatingOutOfRange):
		response.Error(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &delivery):
		response.Error(w, http.StatusBadGateway, delivery.Error())
	default:
		response.Error(w, http.StatusInternalServerError, err.Error())
	}
}
