package mocks

import (
	"context"
	"encoding/json"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type PaymentServiceMock struct {
	mock.Mock
}

func NewPaymentServiceMock() *PaymentServiceMock {
	return &PaymentServiceMock{}
}

func (m *PaymentServiceMock) payment(args mock.Arguments) (*model.Payment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *PaymentServiceMock) CreatePayment(ctx context.Context, in model.CreatePaymentInput) (*model.Payment, error) {
	return m.payment(m.Called(ctx, in))
}

func (m *PaymentServiceMock) CompletePayment(ctx context.Context, id uuid.UUID, gatewayTransactionID string, gatewayResponse json.RawMessage) (*model.Payment, error) {
	return m.payment(m.Called(ctx, id, gatewayTransactionID, gatewayResponse))
}

func (m *PaymentServiceMock) FailPayment(ctx context.Context, id uuid.UUID, reason string) (*model.Payment, error) {
	return m.payment(m.Called(ctx, id, reason))
}

func (m *PaymentServiceMock) RefundPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return m.payment(m.Called(ctx, id))
}

func (m *PaymentServiceMock) Get(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return m.payment(m.Called(ctx, id))
}

func (m *PaymentServiceMock) FindLive(ctx context.Context, relatedTo model.RelatedType, relatedID string) (*model.Payment, error) {
	return m.payment(m.Called(ctx, relatedTo, relatedID))
}

func (m *PaymentServiceMock) List(ctx context.Context, filter model.PaymentFilter) (*model.Page[*model.Payment], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Page[*model.Payment]), args.Error(1)
}

func (m *PaymentServiceMock) OnRefund(hook service.RefundHook) {
	m.Called(hook)
}
