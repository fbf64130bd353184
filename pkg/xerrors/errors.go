package xerrors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input provided")
)

// Engagement protocol
var (
	// ErrStaleAction means the user acted on a notification that a concurrent
	// handler already removed. The second action must be a no-op, never a
	// duplicate dispatch.
	ErrStaleAction = errors.New("notification no longer exists")

	// ErrEngagementBlocked is the rating-debt gate veto: the identity has two
	// or more completed engagements it has not rated yet.
	ErrEngagementBlocked = errors.New("pending ratings must be resolved before starting a new engagement")

	// ErrSenderUnresolved means neither the structured nor the legacy sender
	// reference could be extracted from a notification.
	ErrSenderUnresolved = errors.New("sender identity could not be resolved")

	// ErrActionInFlight rejects a re-entrant submission for a notification
	// whose handler has not finished yet.
	ErrActionInFlight = errors.New("an action for this notification is already in flight")
)

// Review ledger
var (
	ErrEmptyRatings     = errors.New("review must contain at least one criterion rating")
	ErrRatingOutOfRange = errors.New("criterion ratings must be between 1 and 5")

	// ErrDuplicateReview means a review for this consumed notification was
	// already appended by an earlier attempt. The retry resumes with the
	// removal instead of writing a second review.
	ErrDuplicateReview = errors.New("review already recorded for this notification")
)

// DeliveryError wraps a failed mailbox or ledger write. The caller decides
// whether to retry; nothing in the core retries automatically.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
