package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

var _ port.ReviewsStorage = (*ReviewsRepository)(nil)

type ReviewsRepository struct {
	db SQLDB
}

func NewReviewsRepository(db SQLDB) ReviewsRepository {
	return ReviewsRepository{db}
}

func (r ReviewsRepository) CreateReview(
	ctx context.Context, v domain.Review,
) (domain.Review, error) {
	const op = "ReviewsRepository.CreateReview"

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO reviews (username, review, created_at)
		VALUES ($1, $2, $3)
		RETURNING id;`,
		v.Username, v.Text, v.CreatedAt,
	).Scan(&v.ID)
	if err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (r ReviewsRepository) ListReviews(
	ctx context.Context,
) ([]domain.Review, error) {
	const op = "ReviewsRepository.ListReviews"
	log := slog.With("op", op)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, review, created_at
		FROM reviews
		ORDER BY created_at DESC, id DESC;`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", "err", err)
		}
	}()

	vs := []domain.Review{}
	for rows.Next() {
		var v domain.Review
		if err := rows.Scan(&v.ID, &v.Username, &v.Text, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		vs = append(vs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return vs, nil
}

func (r ReviewsRepository) DeleteReview(ctx context.Context, id int64) error {
	const op = "ReviewsRepository.DeleteReview"

	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOne(res, "review", id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
