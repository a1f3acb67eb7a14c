package mocks

import (
	"context"

	"campus-ticketing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type RegistrationServiceMock struct {
	mock.Mock
}

func NewRegistrationServiceMock() *RegistrationServiceMock {
	return &RegistrationServiceMock{}
}

func (m *RegistrationServiceMock) registration(args mock.Arguments) (*model.Registration, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Registration), args.Error(1)
}

func (m *RegistrationServiceMock) Register(ctx context.Context, eventID uuid.UUID, userID string) (*model.Registration, error) {
	return m.registration(m.Called(ctx, eventID, userID))
}

func (m *RegistrationServiceMock) Cancel(ctx context.Context, id uuid.UUID, actor model.Identity) (*model.Registration, error) {
	return m.registration(m.Called(ctx, id, actor))
}

func (m *RegistrationServiceMock) CheckIn(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return m.registration(m.Called(ctx, id))
}

func (m *RegistrationServiceMock) MarkNoShow(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return m.registration(m.Called(ctx, id))
}

func (m *RegistrationServiceMock) MarkConfirmed(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return m.registration(m.Called(ctx, id))
}

func (m *RegistrationServiceMock) SubmitFeedback(ctx context.Context, id uuid.UUID, actor model.Identity, feedback model.Feedback) (*model.Registration, error) {
	return m.registration(m.Called(ctx, id, actor, feedback))
}

func (m *RegistrationServiceMock) Get(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return m.registration(m.Called(ctx, id))
}

func (m *RegistrationServiceMock) List(ctx context.Context, filter model.RegistrationFilter) (*model.Page[*model.Registration], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Page[*model.Registration]), args.Error(1)
}

func (m *RegistrationServiceMock) ListUnconfirmed(ctx context.Context, after *model.UnconfirmedCursor, limit int) ([]*model.Registration, error) {
	args := m.Called(ctx, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Registration), args.Error(1)
}
