package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payer settles a paid event.
type PaymentMethod string

const (
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodNetBanking PaymentMethod = "netbanking"
	PaymentMethodWallet     PaymentMethod = "wallet"
	PaymentMethodCash       PaymentMethod = "cash"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodUPI, PaymentMethodCard, PaymentMethodNetBanking, PaymentMethodWallet, PaymentMethodCash:
		return true
	}
	return false
}

// EventPricing is either FreePricing or PaidPricing.
type EventPricing interface {
	isEventPricing()
}

type FreePricing struct{}

func (FreePricing) isEventPricing() {}

type PaidPricing struct {
	Price                  int64
	Currency               string
	AcceptedPaymentMethods []PaymentMethod
	PaymentDeadline        *time.Time
}

func (PaidPricing) isEventPricing() {}

func (p PaidPricing) Accepts(method PaymentMethod) bool {
	return slices.Contains(p.AcceptedPaymentMethods, method)
}

func (p PaidPricing) DeadlinePassed(now time.Time) bool {
	return p.PaymentDeadline != nil && now.After(*p.PaymentDeadline)
}

// Event is the catalog's view of an event. RegisteredCount is only written by registration transactions.
type Event struct {
	ID              uuid.UUID
	Name            string
	Capacity        *int
	RegisteredCount int
	Pricing         EventPricing
	StartsAt        *time.Time
	EndsAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Paid returns the paid terms, or false for free events.
func (e *Event) Paid() (PaidPricing, bool) {
	switch p := e.Pricing.(type) {
	case PaidPricing:
		return p, true
	case *PaidPricing:
		if p != nil {
			return *p, true
		}
	}
	return PaidPricing{}, false
}

func (e *Event) IsPaid() bool {
	_, ok := e.Paid()
	return ok
}

func (e *Event) IsFull() bool {
	return e.Capacity != nil && e.RegisteredCount >= *e.Capacity
}

func (e *Event) HasEnded(now time.Time) bool {
	return e.EndsAt != nil && now.After(*e.EndsAt)
}

type eventJSON struct {
	ID                     uuid.UUID       `json:"id"`
	Name                   string          `json:"name"`
	Capacity               *int            `json:"capacity"`
	RegisteredCount        int             `json:"registered_count"`
	IsPaid                 bool            `json:"is_paid"`
	PriceMinor             int64           `json:"price_minor"`
	Price                  string          `json:"price"`
	Currency               string          `json:"currency,omitempty"`
	AcceptedPaymentMethods []PaymentMethod `json:"accepted_payment_methods"`
	PaymentDeadline        *time.Time      `json:"payment_deadline,omitempty"`
	StartsAt               *time.Time      `json:"starts_at,omitempty"`
	EndsAt                 *time.Time      `json:"ends_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:                     e.ID,
		Name:                   e.Name,
		Capacity:               e.Capacity,
		RegisteredCount:        e.RegisteredCount,
		Price:                  FormatAmount(0),
		AcceptedPaymentMethods: []PaymentMethod{},
		StartsAt:               e.StartsAt,
		EndsAt:                 e.EndsAt,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
	if paid, ok := e.Paid(); ok {
		out.IsPaid = true
		out.PriceMinor = paid.Price
		out.Price = FormatAmount(paid.Price)
		out.Currency = paid.Currency
		out.PaymentDeadline = paid.PaymentDeadline
		if paid.AcceptedPaymentMethods != nil {
			out.AcceptedPaymentMethods = paid.AcceptedPaymentMethods
		}
	}
	return json.Marshal(out)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Event{
		ID:              in.ID,
		Name:            in.Name,
		Capacity:        in.Capacity,
		RegisteredCount: in.RegisteredCount,
		Pricing:         FreePricing{},
		StartsAt:        in.StartsAt,
		EndsAt:          in.EndsAt,
		CreatedAt:       in.CreatedAt,
		UpdatedAt:       in.UpdatedAt,
	}
	if in.IsPaid {
		e.Pricing = PaidPricing{
			Price:                  in.PriceMinor,
			Currency:               in.Currency,
			AcceptedPaymentMethods: in.AcceptedPaymentMethods,
			PaymentDeadline:        in.PaymentDeadline,
		}
	}
	return nil
}

// CreateEventRequest is the catalog seed payload.
type CreateEventRequest struct {
	Name                   string           `json:"name" binding:"required,max=200"`
	Capacity               *int             `json:"capacity" binding:"omitempty,min=0"`
	IsPaid                 bool             `json:"is_paid"`
	Price                  *decimal.Decimal `json:"price"`
	Currency               string           `json:"currency"`
	AcceptedPaymentMethods []PaymentMethod  `json:"accepted_payment_methods"`
	PaymentDeadline        *time.Time       `json:"payment_deadline"`
	StartsAt               *time.Time       `json:"starts_at"`
	EndsAt                 *time.Time       `json:"ends_at"`
}

// ToEvent validates the request and builds the pricing variant.
func (r CreateEventRequest) ToEvent(defaultCurrency string) (*Event, error) {
	if r.StartsAt != nil && r.EndsAt != nil && r.EndsAt.Before(*r.StartsAt) {
		return nil, fmt.Errorf("%w: ends_at is before starts_at", apperrors.ErrInvalidInput)
	}

	event := &Event{
		ID:       uuid.New(),
		Name:     r.Name,
		Capacity: r.Capacity,
		Pricing:  FreePricing{},
		StartsAt: r.StartsAt,
		EndsAt:   r.EndsAt,
	}
	if !r.IsPaid {
		return event, nil
	}

	if r.Price == nil {
		return nil, fmt.Errorf("%w: paid events need a price", apperrors.ErrInvalidInput)
	}
	price, err := ParseAmount(*r.Price)
	if err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: paid events need a positive price", apperrors.ErrInvalidInput)
	}
	if len(r.AcceptedPaymentMethods) == 0 {
		return nil, fmt.Errorf("%w: paid events need at least one payment method", apperrors.ErrInvalidInput)
	}
	for _, m := range r.AcceptedPaymentMethods {
		if !m.IsValid() {
			return nil, fmt.Errorf("%w: unknown payment method %q", apperrors.ErrInvalidInput, m)
		}
	}
	currency := r.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	event.Pricing = PaidPricing{
		Price:                  price,
		Currency:               currency,
		AcceptedPaymentMethods: slices.Compact(slices.Sorted(slices.Values(r.AcceptedPaymentMethods))),
		PaymentDeadline:        r.PaymentDeadline,
	}
	return event, nil
}
