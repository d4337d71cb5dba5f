// Package rating keeps a user's ratings list and its running average in step.
package rating

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ayush/skill-swap/internal/metrics"
	"github.com/ayush/skill-swap/internal/models"
)

const maxAttempts = 3

// UserStore is the persistence the aggregator needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// ReplaceRatings writes ratings and avg only while the stored list still
	// holds expectedCount entries; otherwise it returns
	// models.ErrPreconditionFailed.
	ReplaceRatings(ctx context.Context, userID string, ratings []models.Rating, avg float64, expectedCount int) error
}

// Mean is the arithmetic mean of all rating values, or 0 for none.
func Mean(ratings []models.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Value
	}
	return float64(sum) / float64(len(ratings))
}

// Apply appends r to u's ratings and recomputes AvgRating.
func Apply(u *models.User, r models.Rating) {
	u.Ratings = append(u.Ratings, r)
	u.AvgRating = Mean(u.Ratings)
}

// Aggregator persists ratings with an optimistic check on the list length so
// two concurrent raters never overwrite each other.
type Aggregator struct {
	users UserStore
}

func NewAggregator(users UserStore) *Aggregator {
	return &Aggregator{users: users}
}

// Add appends r to the user's ratings and returns the updated user.
func (a *Aggregator) Add(ctx context.Context, userID string, r models.Rating) (*models.User, error) {
	if r.Value < 1 || r.Value > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", models.ErrValidation)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		u, err := a.users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		prev := len(u.Ratings)
		Apply(u, r)

		err = a.users.ReplaceRatings(ctx, userID, u.Ratings, u.AvgRating, prev)
		if err == nil {
			metrics.RatingsSubmitted.WithLabelValues(strconv.Itoa(r.Value)).Inc()
			return u, nil
		}
		if !errors.Is(err, models.ErrPreconditionFailed) {
			return nil, fmt.Errorf("save ratings: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("save ratings after %d attempts: %w", maxAttempts, lastErr)
}
