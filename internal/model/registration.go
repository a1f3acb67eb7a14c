package model

import (
	"fmt"
	"time"

	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
)

type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusAttended   RegistrationStatus = "attended"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
	RegistrationStatusNoShow     RegistrationStatus = "no_show"
)

var registrationTransitions = map[RegistrationStatus][]RegistrationStatus{
	RegistrationStatusRegistered: {RegistrationStatusAttended, RegistrationStatusNoShow, RegistrationStatusCancelled},
	RegistrationStatusAttended:   {},
	RegistrationStatusNoShow:     {},
	RegistrationStatusCancelled:  {},
}

func (s RegistrationStatus) IsValid() bool {
	switch s {
	case RegistrationStatusRegistered, RegistrationStatusAttended, RegistrationStatusCancelled, RegistrationStatusNoShow:
		return true
	}
	return false
}

func (s RegistrationStatus) CanTransitionTo(target RegistrationStatus) bool {
	return canTransition(registrationTransitions, s, target)
}

// IsActive reports whether the registration holds a seat and blocks a second registration.
func (s RegistrationStatus) IsActive() bool {
	return s != RegistrationStatusCancelled
}

type Feedback struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

func (f Feedback) Validate() error {
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", apperrors.ErrInvalidInput)
	}
	if len(f.Comment) > 1000 {
		return fmt.Errorf("%w: comment is longer than 1000 characters", apperrors.ErrInvalidInput)
	}
	return nil
}

type Registration struct {
	ID           uuid.UUID          `json:"id"`
	EventID      uuid.UUID          `json:"event_id"`
	UserID       string             `json:"user_id"`
	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
	CheckInTime  *time.Time         `json:"check_in_time,omitempty"`
	ConfirmedAt  *time.Time         `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time         `json:"cancelled_at,omitempty"`
	Feedback     *Feedback          `json:"feedback,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// IsConfirmed reports whether a ticket has been issued for the registration.
func (r *Registration) IsConfirmed() bool {
	return r.ConfirmedAt != nil
}

// UnconfirmedCursor is the keyset position after the last registration of a batch,
// ordered by (RegisteredAt, ID).
type UnconfirmedCursor struct {
	RegisteredAt time.Time
	ID           uuid.UUID
}

// CursorAfter returns the position just past r.
func (r *Registration) CursorAfter() *UnconfirmedCursor {
	return &UnconfirmedCursor{RegisteredAt: r.RegisteredAt, ID: r.ID}
}

type RegistrationFilter struct {
	EventID *uuid.UUID
	UserID  string
	Status  RegistrationStatus
	PageParams
}

func (f RegistrationFilter) Validate() error {
	if f.Status != "" && !f.Status.IsValid() {
		return fmt.Errorf("%w: unknown registration status %q", apperrors.ErrInvalidInput, f.Status)
	}
	return nil
}

type ListRegistrationsQuery struct {
	EventID string             `form:"event_id"`
	UserID  string             `form:"user_id"`
	Status  RegistrationStatus `form:"status"`
	PageParams
}

type FeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=1000"`
}

// RegistrationResult carries the ticket when one was issued inline.
type RegistrationResult struct {
	Registration *Registration `json:"registration"`
	Ticket       *Ticket       `json:"ticket,omitempty"`
}
