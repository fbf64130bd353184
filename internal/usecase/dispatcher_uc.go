package usecase

import (
	"context"
	"errors"

	"engagement-service/internal/domain"
	"engagement-service/internal/mailbox"
	"engagement-service/pkg/xerrors"

	"go.uber.org/zap"
)

// Dispatcher builds the protocol notification variants and appends them to
// recipient mailboxes. Multi-recipient sends are independent appends, not a
// transaction: partial delivery is possible and is reported, not retried.
type Dispatcher struct {
	store  *mailbox.Store
	logger *zap.Logger
}

func NewDispatcher(store *mailbox.Store, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: logger}
}

// Send appends one notification per recipient. Returned notifications cover
// the recipients that were reached; the error joins one DeliveryError per
// failed recipient. The caller decides whether to retry.
func (d *Dispatcher) Send(ctx context.Context, typ domain.NoteType, to []domain.Identity, from domain.Identity, payload map[string]any) ([]*domain.Notification, error) {
	if !typ.Valid() || len(to) == 0 || from.IsZero() {
		return nil, xerrors.ErrInvalidInput
	}

	var (
		created  []*domain.Notification
		failures []error
	)
	for _, rcpt := range to {
		n := &domain.Notification{
			Type:    typ,
			From:    &domain.SenderRef{ID: from.ID, Category: from.Category},
			Payload: clonePayload(payload),
		}
		stored, err := d.store.Append(ctx, rcpt, n)
		if err != nil {
			d.logger.Warn("notification append failed",
				zap.String("type", string(typ)),
				zap.String("recipient", rcpt.Key()),
				zap.Error(err))
			failures = append(failures, &xerrors.DeliveryError{Recipient: rcpt.Key(), Err: err})
			continue
		}
		created = append(created, stored)
	}

	return created, errors.Join(failures...)
}

func clonePayload(payload map[string]any) map[string]any {
	cp := make(map[string]any, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	return cp
}
