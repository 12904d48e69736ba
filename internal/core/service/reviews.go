package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
)

const maxReviewLen = 2000

var _ port.ReviewService = (*ReviewService)(nil)

type ReviewService struct {
	reviews port.ReviewsStorage
}

func NewReviewService(reviews port.ReviewsStorage) ReviewService {
	return ReviewService{reviews}
}

// Reviews returns the newest reviews first.
func (s ReviewService) Reviews(ctx context.Context) ([]domain.Review, error) {
	const op = "ReviewService.Reviews"

	rs, err := s.reviews.ListReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rs, nil
}

func (s ReviewService) AddReview(
	ctx context.Context, username, text string,
) (domain.Review, error) {
	const op = "ReviewService.AddReview"

	username = strings.TrimSpace(username)
	text = strings.TrimSpace(text)

	switch {
	case username == "":
		return domain.Review{}, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("username", "required"))
	case len(username) > maxNameLen:
		return domain.Review{}, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("username", "too long"))
	case text == "":
		return domain.Review{}, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("review", "required"))
	case len(text) > maxReviewLen:
		return domain.Review{}, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("review", "too long"))
	}

	r, err := s.reviews.CreateReview(ctx, domain.Review{
		Username:  username,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Review{}, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

func (s ReviewService) DeleteReview(ctx context.Context, id int64) error {
	const op = "ReviewService.DeleteReview"

	if err := s.reviews.DeleteReview(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
