package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-ticketing/internal/metrics"
	"campus-ticketing/internal/model"
	"campus-ticketing/internal/repository"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RegistrationService interface {
	Register(ctx context.Context, eventID uuid.UUID, userID string) (*model.Registration, error)
	Cancel(ctx context.Context, id uuid.UUID, actor model.Identity) (*model.Registration, error)
	CheckIn(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	SubmitFeedback(ctx context.Context, id uuid.UUID, actor model.Identity, feedback model.Feedback) (*model.Registration, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	List(ctx context.Context, filter model.RegistrationFilter) (*model.Page[*model.Registration], error)
	ListUnconfirmed(ctx context.Context, after *model.UnconfirmedCursor, limit int) ([]*model.Registration, error)
}

type RegistrationServiceImpl struct {
	repo   repository.RegistrationRepository
	ledger ledgerRunner
}

func NewRegistrationService(repo repository.RegistrationRepository, opts LedgerOptions) RegistrationService {
	return &RegistrationServiceImpl{
		repo:   repo,
		ledger: newLedgerRunner(opts, "registration_service"),
	}
}

func (s *RegistrationServiceImpl) Register(ctx context.Context, eventID uuid.UUID, userID string) (*model.Registration, error) {
	if eventID == uuid.Nil {
		return nil, fmt.Errorf("%w: event id is required", apperrors.ErrInvalidInput)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}

	registration := &model.Registration{
		ID:           uuid.New(),
		EventID:      eventID,
		UserID:       userID,
		Status:       model.RegistrationStatusRegistered,
		RegisteredAt: time.Now().UTC(),
	}
	created, err := call(ctx, s.ledger, "registration.create", func(ctx context.Context) (*model.Registration, error) {
		return s.repo.CreateActive(ctx, registration)
	})
	if errors.Is(err, apperrors.ErrAlreadyRegistered) {
		// A retried attempt can collide with its own earlier commit.
		if own, findErr := s.repo.FindByID(ctx, registration.ID); findErr == nil {
			created, err = own, nil
		}
	}
	metrics.RegistrationsTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.ledger.log.Info("Registration created",
		zap.String("registration_id", created.ID.String()),
		zap.String("event_id", eventID.String()),
		zap.String("user_id", userID))
	return created, nil
}

func (s *RegistrationServiceImpl) Cancel(ctx context.Context, id uuid.UUID, actor model.Identity) (*model.Registration, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanActOn(current.UserID) {
		return nil, fmt.Errorf("%w: registration belongs to another user", apperrors.ErrForbidden)
	}

	updated, err := call(ctx, s.ledger, "registration.cancel", func(ctx context.Context) (*model.Registration, error) {
		return s.repo.Cancel(ctx, id, time.Now().UTC())
	})
	if isStale(err) {
		if updated.Status == model.RegistrationStatusCancelled {
			return updated, nil
		}
		return nil, invalidRegistrationTransition(updated, model.RegistrationStatusCancelled)
	}
	if err != nil {
		return nil, err
	}

	s.ledger.log.Info("Registration cancelled",
		zap.String("registration_id", id.String()),
		zap.String("actor", actor.UserID))
	return updated, nil
}

// CheckIn is idempotent for registrations that are already attended.
func (s *RegistrationServiceImpl) CheckIn(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return s.transition(ctx, id, model.RegistrationStatusAttended)
}

func (s *RegistrationServiceImpl) MarkNoShow(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return s.transition(ctx, id, model.RegistrationStatusNoShow)
}

func (s *RegistrationServiceImpl) transition(ctx context.Context, id uuid.UUID, to model.RegistrationStatus) (*model.Registration, error) {
	updated, err := call(ctx, s.ledger, "registration.update_status", func(ctx context.Context) (*model.Registration, error) {
		return s.repo.UpdateStatus(ctx, id, model.RegistrationStatusRegistered, to, time.Now().UTC())
	})
	if isStale(err) {
		if updated.Status == to {
			return updated, nil
		}
		return nil, invalidRegistrationTransition(updated, to)
	}
	return updated, err
}

func (s *RegistrationServiceImpl) MarkConfirmed(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return call(ctx, s.ledger, "registration.mark_confirmed", func(ctx context.Context) (*model.Registration, error) {
		return s.repo.MarkConfirmed(ctx, id, time.Now().UTC())
	})
}

func (s *RegistrationServiceImpl) SubmitFeedback(ctx context.Context, id uuid.UUID, actor model.Identity, feedback model.Feedback) (*model.Registration, error) {
	if err := feedback.Validate(); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID != current.UserID {
		return nil, fmt.Errorf("%w: only the attendee can leave feedback", apperrors.ErrForbidden)
	}

	updated, err := call(ctx, s.ledger, "registration.set_feedback", func(ctx context.Context) (*model.Registration, error) {
		return s.repo.SetFeedback(ctx, id, feedback, time.Now().UTC())
	})
	if isStale(err) {
		return nil, fmt.Errorf("%w: feedback needs an attended registration, this one is %s",
			apperrors.ErrInvalidTransition, updated.Status)
	}
	return updated, err
}

func (s *RegistrationServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return call(ctx, s.ledger, "registration.find", func(ctx context.Context) (*model.Registration, error) {
		return s.repo.FindByID(ctx, id)
	})
}

func (s *RegistrationServiceImpl) List(ctx context.Context, filter model.RegistrationFilter) (*model.Page[*model.Registration], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var (
		items []*model.Registration
		total int
	)
	err := s.ledger.run(ctx, "registration.list", func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, total, filter.PageParams), nil
}

func (s *RegistrationServiceImpl) ListUnconfirmed(ctx context.Context, after *model.UnconfirmedCursor, limit int) ([]*model.Registration, error) {
	return call(ctx, s.ledger, "registration.list_unconfirmed", func(ctx context.Context) ([]*model.Registration, error) {
		return s.repo.ListUnconfirmed(ctx, after, limit)
	})
}

func invalidRegistrationTransition(current *model.Registration, to model.RegistrationStatus) error {
	return fmt.Errorf("%w: registration %s is %s, cannot move to %s",
		apperrors.ErrInvalidTransition, current.ID, current.Status, to)
}
