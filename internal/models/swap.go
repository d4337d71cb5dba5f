package models

import (
	"fmt"
	"strings"
	"time"
)

// SwapStatus is a state of the swap lifecycle.
//
//	pending ──responder──▶ accepted ──either party rates──▶ completed
//	   └─────responder──▶ rejected
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapRejected  SwapStatus = "rejected"
	SwapCompleted SwapStatus = "completed"
)

// Valid reports whether s is a known status.
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapPending, SwapAccepted, SwapRejected, SwapCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func (s SwapStatus) IsTerminal() bool {
	return s == SwapRejected || s == SwapCompleted
}

// Swap is a request from one user to exchange skills with another.
type Swap struct {
	ID              string     `json:"id"`
	RequesterID     string     `json:"requesterId"`
	ResponderID     string     `json:"responderId"`
	RequesterSkills []string   `json:"requesterSkills"`
	ResponderSkills []string   `json:"responderSkills"`
	Message         string     `json:"message"`
	Status          SwapStatus `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Counterparty returns the other participant when userID takes part in the
// swap. ok is false for outsiders.
func (s *Swap) Counterparty(userID string) (other string, ok bool) {
	switch userID {
	case s.RequesterID:
		return s.ResponderID, true
	case s.ResponderID:
		return s.RequesterID, true
	}
	return "", false
}

// SwapView is a swap with its participants resolved for listings.
type SwapView struct {
	Swap
	Requester UserSummary `json:"requester"`
	Responder UserSummary `json:"responder"`
}

// CreateSwapRequest is the JSON body for POST /api/swaps.
type CreateSwapRequest struct {
	ResponderID     string   `json:"responderId"`
	RequesterSkills []string `json:"requesterSkills"`
	ResponderSkills []string `json:"responderSkills"`
	Message         string   `json:"message"`
}

// Validate normalizes the skill lists and checks required fields.
func (r *CreateSwapRequest) Validate() error {
	r.ResponderID = strings.TrimSpace(r.ResponderID)
	r.RequesterSkills = NormalizeSkills(r.RequesterSkills)
	r.ResponderSkills = NormalizeSkills(r.ResponderSkills)
	if r.ResponderID == "" {
		return fmt.Errorf("%w: a responder is required", ErrValidation)
	}
	if len(r.RequesterSkills) == 0 {
		return fmt.Errorf("%w: you must offer at least one skill", ErrValidation)
	}
	if len(r.ResponderSkills) == 0 {
		return fmt.Errorf("%w: you must request at least one skill", ErrValidation)
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("%w: a message is required", ErrValidation)
	}
	return nil
}

// UpdateSwapStatusRequest is the JSON body for PUT /api/swaps/{id}.
type UpdateSwapStatusRequest struct {
	Status SwapStatus `json:"status"`
}

// Validate restricts the responder's decision to accepted or rejected.
func (r *UpdateSwapStatusRequest) Validate() error {
	if r.Status != SwapAccepted && r.Status != SwapRejected {
		return fmt.Errorf("%w: status must be accepted or rejected", ErrValidation)
	}
	return nil
}

// RateSwapRequest is the JSON body for POST /api/swaps/{id}/rate.
type RateSwapRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// Validate checks the rating range and trims the feedback.
func (r *RateSwapRequest) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	r.Feedback = strings.TrimSpace(r.Feedback)
	return nil
}
