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

type TicketService interface {
	Issue(ctx context.Context, in model.IssueTicketInput) (*model.Ticket, error)
	CheckIn(ctx context.Context, id uuid.UUID) (*model.CheckInResult, error)
	CheckInByNumber(ctx context.Context, ticketNumber string) (*model.CheckInResult, error)
	Cancel(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*model.Ticket, error)
	List(ctx context.Context, filter model.TicketFilter) (*model.Page[*model.Ticket], error)
}

type TicketServiceImpl struct {
	repo   repository.TicketRepository
	ledger ledgerRunner
}

func NewTicketService(repo repository.TicketRepository, opts LedgerOptions) TicketService {
	return &TicketServiceImpl{
		repo:   repo,
		ledger: newLedgerRunner(opts, "ticket_service"),
	}
}

// Issue returns the existing ticket when one was already issued for the registration.
func (s *TicketServiceImpl) Issue(ctx context.Context, in model.IssueTicketInput) (*model.Ticket, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ticket := &model.Ticket{
		ID:             uuid.New(),
		UserID:         in.UserID,
		EventID:        in.EventID,
		RegistrationID: in.RegistrationID,
		PaymentID:      in.PaymentID,
		Type:           in.Type,
		Price:          in.Price,
		Quantity:       in.Quantity,
		Status:         model.TicketStatusValid,
		PurchasedAt:    time.Now().UTC(),
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		ticket.TicketNumber = newTicketNumber()

		var created bool
		issued, err := call(ctx, s.ledger, "ticket.create", func(ctx context.Context) (*model.Ticket, error) {
			t, ok, err := s.repo.Create(ctx, ticket)
			created = ok
			return t, err
		})
		if errors.Is(err, repository.ErrDuplicateNumber) {
			// A retried attempt can collide with its own earlier commit.
			if own, findErr := s.repo.FindByID(ctx, ticket.ID); findErr == nil {
				return own, nil
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		if created {
			metrics.TicketsIssuedTotal.WithLabelValues(string(issued.Type)).Inc()
			s.ledger.log.Info("Ticket issued",
				zap.String("ticket_id", issued.ID.String()),
				zap.String("ticket_number", issued.TicketNumber),
				zap.String("event_id", issued.EventID.String()),
				zap.String("user_id", issued.UserID))
		}
		return issued, nil
	}
	return nil, fmt.Errorf("%w: could not allocate a ticket number", apperrors.ErrUnavailable)
}

func (s *TicketServiceImpl) CheckIn(ctx context.Context, id uuid.UUID) (*model.CheckInResult, error) {
	result, err := s.checkIn(ctx, id)
	metrics.CheckInsTotal.WithLabelValues(checkInOutcome(result, err)).Inc()
	return result, err
}

func (s *TicketServiceImpl) CheckInByNumber(ctx context.Context, ticketNumber string) (*model.CheckInResult, error) {
	if ticketNumber == "" {
		return nil, fmt.Errorf("%w: ticket number is required", apperrors.ErrInvalidInput)
	}
	ticket, err := call(ctx, s.ledger, "ticket.find_by_number", func(ctx context.Context) (*model.Ticket, error) {
		return s.repo.FindByNumber(ctx, ticketNumber)
	})
	if err != nil {
		metrics.CheckInsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	return s.CheckIn(ctx, ticket.ID)
}

func (s *TicketServiceImpl) checkIn(ctx context.Context, id uuid.UUID) (*model.CheckInResult, error) {
	updated, err := call(ctx, s.ledger, "ticket.update_status", func(ctx context.Context) (*model.Ticket, error) {
		return s.repo.UpdateStatus(ctx, id, model.TicketStatusValid, model.TicketStatusUsed, time.Now().UTC())
	})
	if isStale(err) {
		if updated.Status == model.TicketStatusUsed {
			return &model.CheckInResult{Ticket: updated, AlreadyCheckedIn: true}, nil
		}
		return nil, fmt.Errorf("%w: ticket %s is %s", apperrors.ErrTicketNotRedeemable, updated.TicketNumber, updated.Status)
	}
	if err != nil {
		return nil, err
	}
	return &model.CheckInResult{Ticket: updated}, nil
}

func checkInOutcome(result *model.CheckInResult, err error) string {
	if err == nil && result.AlreadyCheckedIn {
		return "already_checked_in"
	}
	return outcome(err)
}

func (s *TicketServiceImpl) Cancel(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	updated, err := call(ctx, s.ledger, "ticket.update_status", func(ctx context.Context) (*model.Ticket, error) {
		return s.repo.UpdateStatus(ctx, id, model.TicketStatusValid, model.TicketStatusCancelled, time.Now().UTC())
	})
	if isStale(err) {
		return nil, fmt.Errorf("%w: ticket %s is %s", apperrors.ErrInvalidTransition, updated.TicketNumber, updated.Status)
	}
	if err != nil {
		return nil, err
	}

	s.ledger.log.Info("Ticket cancelled", zap.String("ticket_id", id.String()))
	return updated, nil
}

func (s *TicketServiceImpl) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	return call(ctx, s.ledger, "ticket.expire_ended", func(ctx context.Context) (int64, error) {
		return s.repo.ExpireEnded(ctx, now)
	})
}

func (s *TicketServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	return call(ctx, s.ledger, "ticket.find", func(ctx context.Context) (*model.Ticket, error) {
		return s.repo.FindByID(ctx, id)
	})
}

func (s *TicketServiceImpl) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*model.Ticket, error) {
	return call(ctx, s.ledger, "ticket.find_by_registration", func(ctx context.Context) (*model.Ticket, error) {
		return s.repo.FindByRegistrationID(ctx, registrationID)
	})
}

func (s *TicketServiceImpl) List(ctx context.Context, filter model.TicketFilter) (*model.Page[*model.Ticket], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var (
		items []*model.Ticket
		total int
	)
	err := s.ledger.run(ctx, "ticket.list", func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, total, filter.PageParams), nil
}
