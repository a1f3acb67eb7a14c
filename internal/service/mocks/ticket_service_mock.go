package mocks

import (
	"context"
	"time"

	"campus-ticketing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type TicketServiceMock struct {
	mock.Mock
}

func NewTicketServiceMock() *TicketServiceMock {
	return &TicketServiceMock{}
}

func (m *TicketServiceMock) ticket(args mock.Arguments) (*model.Ticket, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ticket), args.Error(1)
}

func (m *TicketServiceMock) checkIn(args mock.Arguments) (*model.CheckInResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckInResult), args.Error(1)
}

func (m *TicketServiceMock) Issue(ctx context.Context, in model.IssueTicketInput) (*model.Ticket, error) {
	return m.ticket(m.Called(ctx, in))
}

func (m *TicketServiceMock) CheckIn(ctx context.Context, id uuid.UUID) (*model.CheckInResult, error) {
	return m.checkIn(m.Called(ctx, id))
}

func (m *TicketServiceMock) CheckInByNumber(ctx context.Context, ticketNumber string) (*model.CheckInResult, error) {
	return m.checkIn(m.Called(ctx, ticketNumber))
}

func (m *TicketServiceMock) Cancel(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	return m.ticket(m.Called(ctx, id))
}

func (m *TicketServiceMock) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TicketServiceMock) Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	return m.ticket(m.Called(ctx, id))
}

func (m *TicketServiceMock) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*model.Ticket, error) {
	return m.ticket(m.Called(ctx, registrationID))
}

func (m *TicketServiceMock) List(ctx context.Context, filter model.TicketFilter) (*model.Page[*model.Ticket], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Page[*model.Ticket]), args.Error(1)
}
