package domain

// Phase is the reconstructed state of one engagement. No stored record
// represents an engagement: its state is which chained notification types
// currently exist in which mailbox. Phase makes that implicit global state
// an explicit tagged value so handlers and tests reason about one thing.
type Phase int

const (
	// PhaseClosed means no active notification exists for the chain in either
	// mailbox. A completed engagement and one lost to a crash between a
	// removal and the following dispatch look identical from the snapshots
	// alone; IsStuck separates them when the caller knows the chain started.
	PhaseClosed Phase = iota
	PhaseRequested
	PhaseAccepted
	PhaseAwaitingConfirm
	PhaseConfirmed
	PhaseClientRating
	PhaseProviderRating
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseRequested:
		return "requested"
	case PhaseAccepted:
		return "accepted"
	case PhaseAwaitingConfirm:
		return "awaiting_confirm"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseClientRating:
		return "client_rating"
	case PhaseProviderRating:
		return "provider_rating"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "closed"
	}
}

// ComputePhase folds the two current mailbox snapshots into the phase of the
// engagement containing the seed notification ids. Membership is the
// transitive closure of the originalNotifId back-references over both boxes;
// seeds cover chain nodes that carry no back-reference (a job_accept's
// originalNotifId may be absent).
func ComputePhase(clientBox, providerBox []*Notification, seeds ...int64) Phase {
	all := make([]*Notification, 0, len(clientBox)+len(providerBox))
	all = append(all, clientBox...)
	all = append(all, providerBox...)
	chain := chainMembers(all, seeds)

	var (
		request, accept, followup, confirmed bool
		cancelled                            bool
		clientRating, providerRating         bool
	)

	inspect := func(box []*Notification, client bool) {
		for _, n := range box {
			if _, ok := chain[n.ID]; !ok {
				continue
			}
			switch n.Type {
			case NoteJobRequest:
				request = true
			case NoteJobAccept:
				accept = true
			case NoteContactFollowup:
				if n.Cancelled() {
					cancelled = true
				} else {
					followup = true
				}
			case NoteAgreementConfirmed:
				confirmed = true
			case NoteRatingRequest:
				if client {
					clientRating = true
				} else {
					providerRating = true
				}
			}
		}
	}
	inspect(clientBox, true)
	inspect(providerBox, false)

	switch {
	case request:
		return PhaseRequested
	case followup:
		return PhaseAwaitingConfirm
	case cancelled:
		return PhaseCancelled
	case accept:
		return PhaseAccepted
	case confirmed:
		return PhaseConfirmed
	case clientRating:
		return PhaseClientRating
	case providerRating:
		return PhaseProviderRating
	default:
		return PhaseClosed
	}
}

// IsStuck reports the crash gap: the chain was known to have started but no
// active node remains in either mailbox.
func IsStuck(p Phase, chainStarted bool) bool {
	return p == PhaseClosed && chainStarted
}

func chainMembers(all []*Notification, seeds []int64) map[int64]struct{} {
	chain := make(map[int64]struct{}, len(seeds))
	for _, id := range seeds {
		chain[id] = struct{}{}
	}

	// Iterate to a fixpoint; chains are short so this is cheap.
	for {
		grew := false
		for _, n := range all {
			if _, ok := chain[n.ID]; ok {
				continue
			}
			origin, ok := n.OriginalNotifID()
			if !ok {
				continue
			}
			if _, ok := chain[origin]; ok {
				chain[n.ID] = struct{}{}
				grew = true
			}
		}
		if !grew {
			return chain
		}
	}
}
