package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/repository/memory"
	"campus-ticketing/internal/service"
	"campus-ticketing/pkg/retry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testLedgerOptions = service.LedgerOptions{
	Timeout: time.Second,
	Retry: &retry.Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	},
}

var (
	student = model.Identity{UserID: "student-1", Role: model.RoleStudent}
	other   = model.Identity{UserID: "student-2", Role: model.RoleStudent}
	staff   = model.Identity{UserID: "staff-1", Role: model.RoleStaff}
)

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []*model.Registration
	completed []*model.Payment
}

func (n *recordingNotifier) OnRegistrationConfirmed(_ context.Context, reg *model.Registration, _ *model.Event, _ *model.Ticket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, reg)
}

func (n *recordingNotifier) OnPaymentCompleted(_ context.Context, p *model.Payment, _ *model.Event, _ *model.Ticket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, p)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.confirmed), len(n.completed)
}

type fixture struct {
	store         *memory.Store
	events        service.EventService
	registrations service.RegistrationService
	payments      service.PaymentService
	tickets       service.TicketService
	lifecycle     service.LifecycleService
	notifier      *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{store: store, notifier: &recordingNotifier{}}
	f.events = service.NewEventService(store.Events(), nil, "INR", testLedgerOptions)
	f.registrations = service.NewRegistrationService(store.Registrations(), testLedgerOptions)
	f.tickets = service.NewTicketService(store.Tickets(), testLedgerOptions)
	f.payments = service.NewPaymentService(store.Payments(),
		service.NewRegistrationTargetResolver(store.Registrations(), f.events), "INR", testLedgerOptions)
	f.lifecycle = service.NewLifecycleService(f.events, f.registrations, f.payments, f.tickets, f.notifier, 50)
	return f
}

func (f *fixture) freeEvent(t *testing.T, capacity *int) *model.Event {
	t.Helper()
	event, err := f.events.Create(context.Background(), model.CreateEventRequest{Name: "Open Mic", Capacity: capacity})
	require.NoError(t, err)
	return event
}

// paidEvent costs 500.00 INR, accepts UPI only and closes payments at deadline (nil for none).
func (f *fixture) paidEvent(t *testing.T, deadline *time.Time) *model.Event {
	t.Helper()
	price := decimal.RequireFromString("500")
	event, err := f.events.Create(context.Background(), model.CreateEventRequest{
		Name:                   "Hackathon",
		IsPaid:                 true,
		Price:                  &price,
		AcceptedPaymentMethods: []model.PaymentMethod{model.PaymentMethodUPI},
		PaymentDeadline:        deadline,
	})
	require.NoError(t, err)
	return event
}

func (f *fixture) pay(t *testing.T, actor model.Identity, registration *model.Registration) *model.Payment {
	t.Helper()
	payment, err := f.lifecycle.CreatePayment(context.Background(), actor, model.CreatePaymentInput{
		Amount:    50000,
		Method:    model.PaymentMethodUPI,
		RelatedTo: model.RelatedTypeRegistration,
		RelatedID: registration.ID.String(),
	})
	require.NoError(t, err)
	return payment
}

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }
