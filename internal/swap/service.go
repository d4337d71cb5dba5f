// Package swap implements the swap lifecycle: creation by the requester,
// the responder's decision, withdrawal, and completion by rating.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ayush/skill-swap/internal/metrics"
	"github.com/ayush/skill-swap/internal/models"
)

// Store defines the interface for swap persistence. Status changes are
// conditional writes so that two racing requests cannot both succeed.
type Store interface {
	InsertSwap(ctx context.Context, s *models.Swap) error
	GetSwap(ctx context.Context, id string) (*models.Swap, error)
	ListSwapsByParticipant(ctx context.Context, userID string) ([]models.Swap, error)
	ListSwaps(ctx context.Context) ([]models.Swap, error)
	// TransitionSwap sets the status to `to` only while it is `from`.
	// It returns models.ErrNotFound for a missing swap and
	// models.ErrPreconditionFailed when the status no longer matches.
	TransitionSwap(ctx context.Context, id string, from, to models.SwapStatus) error
	// DeleteSwapIf removes the swap only while its status is `status`.
	DeleteSwapIf(ctx context.Context, id string, status models.SwapStatus) error
}

// UserLookup resolves swap participants.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Rater records a rating against a user.
type Rater interface {
	Add(ctx context.Context, userID string, r models.Rating) (*models.User, error)
}

// Service is the swap lifecycle engine.
type Service struct {
	swaps        Store
	users        UserLookup
	rater        Rater
	strictSkills bool
}

// NewService creates a Service. With strictSkills set, a requester may only
// offer skills listed on their own profile.
func NewService(swaps Store, users UserLookup, rater Rater, strictSkills bool) *Service {
	return &Service{swaps: swaps, users: users, rater: rater, strictSkills: strictSkills}
}

// Create opens a pending swap from requesterID to the responder named in req.
func (s *Service) Create(ctx context.Context, requesterID string, req models.CreateSwapRequest) (*models.Swap, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ResponderID == requesterID {
		return nil, fmt.Errorf("%w: you cannot request a swap with yourself", models.ErrValidation)
	}

	if _, err := s.users.GetUserByID(ctx, req.ResponderID); err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}

	if s.strictSkills {
		requester, err := s.users.GetUserByID(ctx, requesterID)
		if err != nil {
			return nil, fmt.Errorf("requester: %w", err)
		}
		for _, skill := range req.RequesterSkills {
			if !requester.Offers(skill) {
				return nil, fmt.Errorf("%w: %q is not one of your offered skills", models.ErrValidation, skill)
			}
		}
	}

	sw := &models.Swap{
		RequesterID:     requesterID,
		ResponderID:     req.ResponderID,
		RequesterSkills: req.RequesterSkills,
		ResponderSkills: req.ResponderSkills,
		Message:         req.Message,
		Status:          models.SwapPending,
	}
	if err := s.swaps.InsertSwap(ctx, sw); err != nil {
		return nil, fmt.Errorf("insert swap: %w", err)
	}
	metrics.SwapTransitions.WithLabelValues(string(models.SwapPending)).Inc()
	slog.InfoContext(ctx, "swap created", "swap_id", sw.ID, "requester_id", requesterID, "responder_id", sw.ResponderID)
	return sw, nil
}

// UpdateStatus lets the responder accept or reject a pending swap.
func (s *Service) UpdateStatus(ctx context.Context, swapID, actorID string, req models.UpdateSwapStatusRequest) (*models.Swap, error) {
	sw, err := s.swaps.GetSwap(ctx, swapID)
	if err != nil {
		return nil, fmt.Errorf("swap: %w", err)
	}
	if sw.ResponderID != actorID {
		return nil, fmt.Errorf("%w: only the responder can answer this request", models.ErrUnauthorized)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if sw.Status != models.SwapPending {
		return nil, fmt.Errorf("%w: swap is already %s", models.ErrInvalidState, sw.Status)
	}

	if err := s.transition(ctx, "update_status", sw.ID, models.SwapPending, req.Status); err != nil {
		return nil, err
	}
	sw.Status = req.Status
	return sw, nil
}

// Delete withdraws a pending swap. Only the requester may do this.
func (s *Service) Delete(ctx context.Context, swapID, actorID string) error {
	sw, err := s.swaps.GetSwap(ctx, swapID)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	if sw.RequesterID != actorID {
		return fmt.Errorf("%w: only the requester can withdraw this request", models.ErrUnauthorized)
	}
	if sw.Status != models.SwapPending {
		return fmt.Errorf("%w: cannot delete a non-pending request", models.ErrInvalidState)
	}

	if err := s.swaps.DeleteSwapIf(ctx, sw.ID, models.SwapPending); err != nil {
		if errors.Is(err, models.ErrPreconditionFailed) {
			metrics.SwapConflicts.WithLabelValues("delete").Inc()
		}
		return fmt.Errorf("swap: %w", err)
	}
	slog.InfoContext(ctx, "swap deleted", "swap_id", sw.ID, "requester_id", actorID)
	return nil
}

// CompleteAndRate closes an accepted swap and credits the rater's
// counterparty with the rating.
func (s *Service) CompleteAndRate(ctx context.Context, swapID, raterID string, req models.RateSwapRequest) error {
	sw, err := s.swaps.GetSwap(ctx, swapID)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	if sw.Status != models.SwapAccepted {
		return fmt.Errorf("%w: can only rate accepted swaps", models.ErrInvalidState)
	}
	if err := req.Validate(); err != nil {
		return err
	}
	ratedID, ok := sw.Counterparty(raterID)
	if !ok {
		return fmt.Errorf("%w: user not part of this swap", models.ErrUnauthorized)
	}
	if _, err := s.users.GetUserByID(ctx, ratedID); err != nil {
		return fmt.Errorf("user to be rated: %w", err)
	}

	// Claim the swap first so it can only ever be rated once.
	if err := s.transition(ctx, "rate", sw.ID, models.SwapAccepted, models.SwapCompleted); err != nil {
		return err
	}

	_, err = s.rater.Add(ctx, ratedID, models.Rating{RaterID: raterID, Value: req.Rating, Feedback: req.Feedback})
	if err != nil {
		if rbErr := s.swaps.TransitionSwap(ctx, sw.ID, models.SwapCompleted, models.SwapAccepted); rbErr != nil {
			slog.ErrorContext(ctx, "revert swap completion", "swap_id", sw.ID, "error", rbErr)
		}
		return fmt.Errorf("add rating: %w", err)
	}
	slog.InfoContext(ctx, "swap rated", "swap_id", sw.ID, "rater_id", raterID, "rated_id", ratedID, "value", req.Rating)
	return nil
}

// ListForUser returns every swap userID takes part in, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.SwapView, error) {
	swaps, err := s.swaps.ListSwapsByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	return s.resolve(ctx, swaps, func(u *models.User) models.UserSummary {
		return models.UserSummary{ID: u.ID, Name: u.Name, ProfilePhoto: u.ProfilePhoto}
	})
}

// ListAll returns every swap, newest first, for moderation.
func (s *Service) ListAll(ctx context.Context) ([]models.SwapView, error) {
	swaps, err := s.swaps.ListSwaps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	return s.resolve(ctx, swaps, func(u *models.User) models.UserSummary {
		return models.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
	})
}

func (s *Service) transition(ctx context.Context, op, id string, from, to models.SwapStatus) error {
	if err := s.swaps.TransitionSwap(ctx, id, from, to); err != nil {
		if errors.Is(err, models.ErrPreconditionFailed) {
			metrics.SwapConflicts.WithLabelValues(op).Inc()
		}
		return fmt.Errorf("swap: %w", err)
	}
	metrics.SwapTransitions.WithLabelValues(string(to)).Inc()
	slog.InfoContext(ctx, "swap status changed", "swap_id", id, "from", from, "to", to)
	return nil
}

// resolve attaches participant summaries. Participants that no longer exist
// are rendered with their id only.
func (s *Service) resolve(ctx context.Context, swaps []models.Swap, summarize func(*models.User) models.UserSummary) ([]models.SwapView, error) {
	seen := make(map[string]models.UserSummary)
	lookup := func(id string) (models.UserSummary, error) {
		if sum, ok := seen[id]; ok {
			return sum, nil
		}
		u, err := s.users.GetUserByID(ctx, id)
		switch {
		case errors.Is(err, models.ErrNotFound):
			seen[id] = models.UserSummary{ID: id}
		case err != nil:
			return models.UserSummary{}, fmt.Errorf("resolve user %s: %w", id, err)
		default:
			seen[id] = summarize(u)
		}
		return seen[id], nil
	}

	views := make([]models.SwapView, 0, len(swaps))
	for _, sw := range swaps {
		req, err := lookup(sw.RequesterID)
		if err != nil {
			return nil, err
		}
		resp, err := lookup(sw.ResponderID)
		if err != nil {
			return nil, err
		}
		views = append(views, models.SwapView{Swap: sw, Requester: req, Responder: resp})
	}
	return views, nil
}
