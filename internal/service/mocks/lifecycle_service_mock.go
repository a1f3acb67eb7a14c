package mocks

import (
	"context"
	"encoding/json"
	"time"

	"campus-ticketing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type LifecycleServiceMock struct {
	mock.Mock
}

func NewLifecycleServiceMock() *LifecycleServiceMock {
	return &LifecycleServiceMock{}
}

func (m *LifecycleServiceMock) Register(ctx context.Context, actor model.Identity, eventID uuid.UUID) (*model.RegistrationResult, error) {
	args := m.Called(ctx, actor, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RegistrationResult), args.Error(1)
}

func (m *LifecycleServiceMock) CancelRegistration(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Registration, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Registration), args.Error(1)
}

func (m *LifecycleServiceMock) CreatePayment(ctx context.Context, actor model.Identity, in model.CreatePaymentInput) (*model.Payment, error) {
	args := m.Called(ctx, actor, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *LifecycleServiceMock) CompletePayment(ctx context.Context, id uuid.UUID, gatewayTransactionID string, gatewayResponse json.RawMessage) (*model.PaymentResult, error) {
	args := m.Called(ctx, id, gatewayTransactionID, gatewayResponse)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentResult), args.Error(1)
}

func (m *LifecycleServiceMock) FailPayment(ctx context.Context, id uuid.UUID, reason string) (*model.Payment, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *LifecycleServiceMock) RefundPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *LifecycleServiceMock) CheckInTicket(ctx context.Context, id uuid.UUID) (*model.CheckInResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckInResult), args.Error(1)
}

func (m *LifecycleServiceMock) ScanTicket(ctx context.Context, ticketNumber string) (*model.CheckInResult, error) {
	args := m.Called(ctx, ticketNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckInResult), args.Error(1)
}

func (m *LifecycleServiceMock) CancelTicket(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Ticket, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ticket), args.Error(1)
}

func (m *LifecycleServiceMock) ExpireTickets(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *LifecycleServiceMock) SweepUnpaidRegistrations(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *LifecycleServiceMock) ReconcileTickets(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}
