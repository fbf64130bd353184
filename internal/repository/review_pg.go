package repository

import (
	"context"

	"engagement-service/internal/domain"
	"engagement-service/pkg/xerrors"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgReviews struct {
	db *pgxpool.Pool
}

func NewReviewLedger(db *pgxpool.Pool) ReviewLedger {
	return &pgReviews{db: db}
}

func (p *pgReviews) AppendReview(ctx context.Context, r *domain.Review) (*domain.Review, error) {
	query := `
		INSERT INTO reviews (
			subject_id, subject_category, author_id, author_category,
			context, ratings, overall_rating, comment, original_notif_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	created := *r
	err := p.db.QueryRow(ctx, query,
		r.SubjectID,
		r.SubjectCategory,
		r.AuthorID,
		r.AuthorCategory,
		r.Context,
		r.Ratings,
		r.OverallRating,
		r.Comment,
		r.OriginalNotifID,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		// The unique index on (author, context, original_notif_id) turns a
		// retried append into a detectable no-op.
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return nil, xerrors.ErrDuplicateReview
		}
		return nil, err
	}
	return &created, nil
}

func (p *pgReviews) ListReviews(ctx context.Context, subject domain.Identity, rc domain.ReviewContext) ([]*domain.Review, error) {
	query := `
		SELECT id, subject_id, subject_category, author_id, author_category,
		       context, ratings, overall_rating, comment, original_notif_id, created_at
		FROM reviews
		WHERE subject_id = $1 AND subject_category = $2 AND context = $3
		ORDER BY created_at DESC, id DESC`

	rows, err := p.db.Query(ctx, query, subject.ID, subject.Category, rc)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*domain.Review
	for rows.Next() {
		var r domain.Review
		err := rows.Scan(
			&r.ID,
			&r.SubjectID,
			&r.SubjectCategory,
			&r.AuthorID,
			&r.AuthorCategory,
			&r.Context,
			&r.Ratings,
			&r.OverallRating,
			&r.Comment,
			&r.OriginalNotifID,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, &r)
	}
	return reviews, rows.Err()
}
