package domain

import (
	"time"

	"engagement-service/pkg/xerrors"
)

// ReviewContext separates the two disjoint per-subject review collections:
// reviews of the subject acting as a user (client) and as a provider.
type ReviewContext string

const (
	ReviewAsUser     ReviewContext = "as_user"
	ReviewAsProvider ReviewContext = "as_provider"
)

func (c ReviewContext) Valid() bool {
	return c == ReviewAsUser || c == ReviewAsProvider
}

// Review is immutable once appended. OverallRating is the mean of the
// criterion ratings, computed exactly once at construction and never
// recomputed retroactively.
type Review struct {
	ID              int64          `json:"id"`
	SubjectID       string         `json:"subject_id"`
	SubjectCategory Category       `json:"subject_category"`
	AuthorID        string         `json:"author_id"`
	AuthorCategory  Category       `json:"author_category"`
	Context         ReviewContext  `json:"context"`
	Ratings         map[string]int `json:"ratings"`
	OverallRating   float64        `json:"overall_rating"`
	Comment         string         `json:"comment,omitempty"`
	// OriginalNotifID names the consumed notification; one review may exist
	// per consumed node, which is what makes a retried submission safe.
	OriginalNotifID int64     `json:"original_notif_id"`
	CreatedAt       time.Time `json:"created_at"`
}

func (r *Review) Subject() Identity {
	return Identity{ID: r.SubjectID, Category: r.SubjectCategory}
}

func (r *Review) Author() Identity {
	return Identity{ID: r.AuthorID, Category: r.AuthorCategory}
}

// NewReview validates the criterion ratings and derives the overall mean.
func NewReview(subject, author Identity, rc ReviewContext, ratings map[string]int, comment string) (*Review, error) {
	if subject.IsZero() || author.IsZero() || !rc.Valid() {
		return nil, xerrors.ErrInvalidInput
	}
	if len(ratings) == 0 {
		return nil, xerrors.ErrEmptyRatings
	}

	sum := 0
	copied := make(map[string]int, len(ratings))
	for criterion, score := range ratings {
		if score < 1 || score > 5 {
			return nil, xerrors.ErrRatingOutOfRange
		}
		copied[criterion] = score
		sum += score
	}

	return &Review{
		SubjectID:       subject.ID,
		SubjectCategory: subject.Category,
		AuthorID:        author.ID,
		AuthorCategory:  author.Category,
		Context:         rc,
		Ratings:         copied,
		OverallRating:   float64(sum) / float64(len(copied)),
		Comment:         comment,
	}, nil
}
