package model

import (
	"fmt"
	"time"

	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusExpired   TicketStatus = "expired"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusValid:     {TicketStatusUsed, TicketStatusCancelled, TicketStatusExpired},
	TicketStatusUsed:      {},
	TicketStatusCancelled: {},
	TicketStatusExpired:   {},
}

func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusValid, TicketStatusUsed, TicketStatusCancelled, TicketStatusExpired:
		return true
	}
	return false
}

func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	return canTransition(ticketTransitions, s, target)
}

func (s TicketStatus) IsTerminal() bool {
	return s != TicketStatusValid
}

type TicketType string

const (
	TicketTypeFree     TicketType = "free"
	TicketTypePaid     TicketType = "paid"
	TicketTypeVIP      TicketType = "vip"
	TicketTypeStandard TicketType = "standard"
)

func (t TicketType) IsValid() bool {
	switch t {
	case TicketTypeFree, TicketTypePaid, TicketTypeVIP, TicketTypeStandard:
		return true
	}
	return false
}

type Ticket struct {
	ID             uuid.UUID    `json:"id"`
	UserID         string       `json:"user_id"`
	EventID        uuid.UUID    `json:"event_id"`
	RegistrationID *uuid.UUID   `json:"registration_id,omitempty"`
	PaymentID      *uuid.UUID   `json:"payment_id,omitempty"`
	TicketNumber   string       `json:"ticket_number"`
	Type           TicketType   `json:"type"`
	Price          int64        `json:"price_minor"`
	Quantity       int          `json:"quantity"`
	Status         TicketStatus `json:"status"`
	CheckedInAt    *time.Time   `json:"checked_in_at,omitempty"`
	PurchasedAt    time.Time    `json:"purchased_at"`
	CancelledAt    *time.Time   `json:"cancelled_at,omitempty"`
	ExpiredAt      *time.Time   `json:"expired_at,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type IssueTicketInput struct {
	UserID         string
	EventID        uuid.UUID
	Type           TicketType
	Price          int64
	Quantity       int
	RegistrationID *uuid.UUID
	PaymentID      *uuid.UUID
}

func (in IssueTicketInput) Validate() error {
	if in.UserID == "" {
		return fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	if in.EventID == uuid.Nil {
		return fmt.Errorf("%w: event id is required", apperrors.ErrInvalidInput)
	}
	if !in.Type.IsValid() {
		return fmt.Errorf("%w: unknown ticket type %q", apperrors.ErrInvalidInput, in.Type)
	}
	if in.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", apperrors.ErrInvalidInput)
	}
	if in.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", apperrors.ErrInvalidInput)
	}
	return nil
}

// CheckInResult reports a gate scan. AlreadyCheckedIn is set on a repeat scan.
type CheckInResult struct {
	Ticket           *Ticket `json:"ticket"`
	AlreadyCheckedIn bool    `json:"already_checked_in"`
}

type TicketFilter struct {
	UserID  string
	EventID *uuid.UUID
	Status  TicketStatus
	PageParams
}

func (f TicketFilter) Validate() error {
	if f.Status != "" && !f.Status.IsValid() {
		return fmt.Errorf("%w: unknown ticket status %q", apperrors.ErrInvalidInput, f.Status)
	}
	return nil
}

type ListTicketsQuery struct {
	UserID  string       `form:"user_id"`
	EventID string       `form:"event_id"`
	Status  TicketStatus `form:"status"`
	PageParams
}

type ScanTicketRequest struct {
	TicketNumber string `json:"ticket_number" binding:"required"`
}
