package usecase

import (
	"context"

	"engagement-service/internal/domain"
	"engagement-service/internal/mailbox"
	"engagement-service/pkg/xerrors"
)

// maxUnratedEngagements is the rating-debt threshold: at this many completed
// engagements without an authored review, a party can no longer start or
// accept new engagements.
const maxUnratedEngagements = 2

// RatingDebtGate counts a party's outstanding unrated completed engagements.
// An agreement_confirmed or rating_request node sits in a party's own mailbox
// exactly while that party owes the corresponding review, so the debt is a
// pure fold over the mailbox snapshot.
type RatingDebtGate struct {
	store *mailbox.Store
}

func NewRatingDebtGate(store *mailbox.Store) *RatingDebtGate {
	return &RatingDebtGate{store: store}
}

func (g *RatingDebtGate) Debt(ctx context.Context, identity domain.Identity) (int, error) {
	box, err := g.store.List(ctx, identity)
	if err != nil {
		return 0, err
	}

	debt := 0
	for _, n := range box {
		switch n.Type {
		case domain.NoteAgreementConfirmed, domain.NoteRatingRequest:
			debt++
		}
	}
	return debt, nil
}

// CanEngage returns ErrEngagementBlocked when the identity's rating debt has
// reached the threshold. Checked before dispatching a new job_request and
// before accepting one; never silently dropped.
func (g *RatingDebtGate) CanEngage(ctx context.Context, identity domain.Identity) error {
	debt, err := g.Debt(ctx, identity)
	if err != nil {
		return err
	}
	if debt >= maxUnratedEngagements {
		return xerrors.ErrEngagementBlocked
	}
	return nil
}
