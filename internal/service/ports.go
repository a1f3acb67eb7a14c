package service

import (
	"context"

	"campus-ticketing/internal/model"

	"github.com/google/uuid"
)

// CatalogProvider resolves events and their pricing terms.
type CatalogProvider interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
}

// Notifier receives lifecycle milestones. Implementations must not block the caller
// and must not report delivery failures back to it.
type Notifier interface {
	OnRegistrationConfirmed(ctx context.Context, registration *model.Registration, event *model.Event, ticket *model.Ticket)
	OnPaymentCompleted(ctx context.Context, payment *model.Payment, event *model.Event, ticket *model.Ticket)
}

type NopNotifier struct{}

func (NopNotifier) OnRegistrationConfirmed(context.Context, *model.Registration, *model.Event, *model.Ticket) {
}

func (NopNotifier) OnPaymentCompleted(context.Context, *model.Payment, *model.Event, *model.Ticket) {}
