package domain

import (
	"testing"

	"engagement-service/pkg/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReviewComputesOverallMean(t *testing.T) {
	subject := Identity{ID: "p1", Category: CategoryProviderIndividual}
	author := Identity{ID: "c1", Category: CategoryClientProfile}

	r, err := NewReview(subject, author, ReviewAsUser, map[string]int{"a": 5, "b": 3, "c": 4}, "solid work")
	require.NoError(t, err)

	assert.Equal(t, 4.0, r.OverallRating)
	assert.Equal(t, "p1", r.SubjectID)
	assert.Equal(t, "c1", r.AuthorID)
	assert.Equal(t, ReviewAsUser, r.Context)
	assert.Equal(t, "solid work", r.Comment)
}

func TestNewReviewCopiesRatings(t *testing.T) {
	subject := Identity{ID: "p1", Category: CategoryProviderIndividual}
	author := Identity{ID: "c1", Category: CategoryClientProfile}
	ratings := map[string]int{"a": 2}

	r, err := NewReview(subject, author, ReviewAsUser, ratings, "")
	require.NoError(t, err)

	// Mutating the caller's map must not reach the review.
	ratings["a"] = 5
	assert.Equal(t, 2, r.Ratings["a"])
	assert.Equal(t, 2.0, r.OverallRating)
}

func TestNewReviewValidation(t *testing.T) {
	subject := Identity{ID: "p1", Category: CategoryProviderIndividual}
	author := Identity{ID: "c1", Category: CategoryClientProfile}

	tests := []struct {
		name    string
		subject Identity
		rc      ReviewContext
		ratings map[string]int
		wantErr error
	}{
		{"empty ratings", subject, ReviewAsUser, map[string]int{}, xerrors.ErrEmptyRatings},
		{"rating too low", subject, ReviewAsUser, map[string]int{"a": 0}, xerrors.ErrRatingOutOfRange},
		{"rating too high", subject, ReviewAsUser, map[string]int{"a": 6}, xerrors.ErrRatingOutOfRange},
		{"bad context", subject, ReviewContext("as_alien"), map[string]int{"a": 3}, xerrors.ErrInvalidInput},
		{"zero subject", Identity{}, ReviewAsUser, map[string]int{"a": 3}, xerrors.ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReview(tc.subject, author, tc.rc, tc.ratings, "")
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
