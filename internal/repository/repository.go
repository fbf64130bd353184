package repository

import (
	"context"

	"engagement-service/internal/domain"
)

// Mailbox aggregates the per-identity notification store operations. Every
// operation is scoped to one owner's namespace; nothing here spans two
// mailboxes.
type Mailbox interface {
	Append(ctx context.Context, owner domain.Identity, n *domain.Notification) (*domain.Notification, error)
	Get(ctx context.Context, owner domain.Identity, id int64) (*domain.Notification, error)
	Remove(ctx context.Context, owner domain.Identity, id int64) error
	Mutate(ctx context.Context, owner domain.Identity, id int64, patch map[string]any) error
	List(ctx context.Context, owner domain.Identity) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, owner domain.Identity, id int64) error
	CountUnread(ctx context.Context, owner domain.Identity) (int, error)

	// ContactPending audit trail, nested under the client's namespace.
	UpsertContactPending(ctx context.Context, owner domain.Identity, cp domain.ContactPending) error
	ListContactPending(ctx context.Context, owner domain.Identity) ([]*domain.ContactPending, error)
}

// ReviewLedger is the append-only, per-subject, per-context review store.
type ReviewLedger interface {
	AppendReview(ctx context.Context, r *domain.Review) (*domain.Review, error)
	ListReviews(ctx context.Context, subject domain.Identity, rc domain.ReviewContext) ([]*domain.Review, error)
}
