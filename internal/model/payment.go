package model

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusRefunded},
	PaymentStatusFailed:    {},
	PaymentStatusRefunded:  {},
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	return canTransition(paymentTransitions, s, target)
}

// IsLive reports whether the payment still blocks a new payment for the same target.
func (s PaymentStatus) IsLive() bool {
	return s == PaymentStatusPending || s == PaymentStatusCompleted
}

type RelatedType string

const (
	RelatedTypeTicket       RelatedType = "ticket"
	RelatedTypeRegistration RelatedType = "registration"
	RelatedTypeMembership   RelatedType = "membership"
	RelatedTypeOther        RelatedType = "other"
)

func (t RelatedType) IsValid() bool {
	switch t {
	case RelatedTypeTicket, RelatedTypeRegistration, RelatedTypeMembership, RelatedTypeOther:
		return true
	}
	return false
}

type Payment struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               string          `json:"user_id"`
	TransactionID        string          `json:"transaction_id"`
	Amount               int64           `json:"amount_minor"`
	Currency             string          `json:"currency"`
	Method               PaymentMethod   `json:"payment_method"`
	Status               PaymentStatus   `json:"status"`
	RelatedTo            RelatedType     `json:"related_to"`
	RelatedID            string          `json:"related_id"`
	EventID              *uuid.UUID      `json:"event_id,omitempty"`
	GatewayTransactionID *string         `json:"gateway_transaction_id,omitempty"`
	GatewayResponse      json.RawMessage `json:"gateway_response,omitempty"`
	FailureReason        *string         `json:"failure_reason,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	RefundedAt           *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (p Payment) MarshalJSON() ([]byte, error) {
	type plain Payment
	return json.Marshal(struct {
		plain
		AmountDisplay string `json:"amount"`
	}{plain(p), FormatAmount(p.Amount)})
}

// PaymentTransition carries the fields written together with a status change.
type PaymentTransition struct {
	At                   time.Time
	GatewayTransactionID *string
	GatewayResponse      json.RawMessage
	FailureReason        *string
}

type CreatePaymentInput struct {
	UserID    string
	Amount    int64
	Currency  string
	Method    PaymentMethod
	RelatedTo RelatedType
	RelatedID string
}

func (in CreatePaymentInput) Validate() error {
	if in.UserID == "" {
		return fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", apperrors.ErrInvalidInput)
	}
	if !in.Method.IsValid() {
		return fmt.Errorf("%w: unknown payment method %q", apperrors.ErrInvalidPaymentMethod, in.Method)
	}
	if !in.RelatedTo.IsValid() {
		return fmt.Errorf("%w: unknown related_to %q", apperrors.ErrInvalidInput, in.RelatedTo)
	}
	if in.RelatedID == "" {
		return fmt.Errorf("%w: related_id is required", apperrors.ErrInvalidInput)
	}
	return nil
}

type PaymentFilter struct {
	UserID    string
	Status    PaymentStatus
	RelatedTo RelatedType
	RelatedID string
	PageParams
}

func (f PaymentFilter) Validate() error {
	if f.Status != "" && !f.Status.IsValid() {
		return fmt.Errorf("%w: unknown payment status %q", apperrors.ErrInvalidInput, f.Status)
	}
	if f.RelatedTo != "" && !f.RelatedTo.IsValid() {
		return fmt.Errorf("%w: unknown related_to %q", apperrors.ErrInvalidInput, f.RelatedTo)
	}
	return nil
}

type CreatePaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    PaymentMethod   `json:"payment_method" binding:"required"`
	RelatedTo RelatedType     `json:"related_to" binding:"required"`
	RelatedID string          `json:"related_id" binding:"required"`
}

type CompletePaymentRequest struct {
	GatewayTransactionID string          `json:"gateway_transaction_id" binding:"required"`
	GatewayResponse      json.RawMessage `json:"gateway_response"`
}

type FailPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type ListPaymentsQuery struct {
	UserID    string        `form:"user_id"`
	Status    PaymentStatus `form:"status"`
	RelatedTo RelatedType   `form:"related_to"`
	RelatedID string        `form:"related_id"`
	PageParams
}

// PaymentResult carries the ticket issued when a payment completes.
type PaymentResult struct {
	Payment *Payment `json:"payment"`
	Ticket  *Ticket  `json:"ticket,omitempty"`
}
