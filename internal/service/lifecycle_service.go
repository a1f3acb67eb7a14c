package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campus-ticketing/internal/metrics"
	"campus-ticketing/internal/model"
	apperrors "campus-ticketing/pkg/app_errors"
	"campus-ticketing/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registrations younger than this are left alone by reconciliation; the request
// that created them is probably still confirming them.
const reconcileGrace = 30 * time.Second

// LifecycleService ties registrations, payments and tickets together.
type LifecycleService interface {
	Register(ctx context.Context, actor model.Identity, eventID uuid.UUID) (*model.RegistrationResult, error)
	CancelRegistration(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Registration, error)
	CreatePayment(ctx context.Context, actor model.Identity, in model.CreatePaymentInput) (*model.Payment, error)
	CompletePayment(ctx context.Context, id uuid.UUID, gatewayTransactionID string, gatewayResponse json.RawMessage) (*model.PaymentResult, error)
	FailPayment(ctx context.Context, id uuid.UUID, reason string) (*model.Payment, error)
	RefundPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	CheckInTicket(ctx context.Context, id uuid.UUID) (*model.CheckInResult, error)
	ScanTicket(ctx context.Context, ticketNumber string) (*model.CheckInResult, error)
	CancelTicket(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Ticket, error)
	ExpireTickets(ctx context.Context, now time.Time) (int64, error)
	SweepUnpaidRegistrations(ctx context.Context, now time.Time) (int, error)
	ReconcileTickets(ctx context.Context, now time.Time) (int, error)
}

type LifecycleServiceImpl struct {
	catalog       CatalogProvider
	registrations RegistrationService
	payments      PaymentService
	tickets       TicketService
	notifier      Notifier
	sweepBatch    int
	log           *zap.Logger
}

// NewLifecycleService registers the returned service as a refund hook on payments.
func NewLifecycleService(
	catalog CatalogProvider,
	registrations RegistrationService,
	payments PaymentService,
	tickets TicketService,
	notifier Notifier,
	sweepBatch int,
) LifecycleService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if sweepBatch <= 0 {
		sweepBatch = 200
	}
	s := &LifecycleServiceImpl{
		catalog:       catalog,
		registrations: registrations,
		payments:      payments,
		tickets:       tickets,
		notifier:      notifier,
		sweepBatch:    sweepBatch,
		log:           logger.WithComponent("lifecycle"),
	}
	payments.OnRefund(s.handleRefund)
	return s
}

func (s *LifecycleServiceImpl) Register(ctx context.Context, actor model.Identity, eventID uuid.UUID) (*model.RegistrationResult, error) {
	event, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	registration, err := s.registrations.Register(ctx, eventID, actor.UserID)
	if err != nil {
		return nil, err
	}
	result := &model.RegistrationResult{Registration: registration}
	if event.IsPaid() {
		return result, nil
	}

	confirmed, ticket, err := s.confirm(ctx, registration, event, nil)
	if err != nil {
		s.log.Error("Free ticket issuance failed, left for reconciliation",
			zap.String("registration_id", registration.ID.String()),
			zap.Error(err))
		return result, nil
	}
	result.Registration = confirmed
	result.Ticket = ticket
	return result, nil
}

// confirm issues the ticket for a registration, stamps it confirmed and notifies the attendee.
// Every step is idempotent so reconciliation can repeat it.
func (s *LifecycleServiceImpl) confirm(ctx context.Context, registration *model.Registration, event *model.Event, payment *model.Payment) (*model.Registration, *model.Ticket, error) {
	in := model.IssueTicketInput{
		UserID:         registration.UserID,
		EventID:        registration.EventID,
		Type:           model.TicketTypeFree,
		Quantity:       1,
		RegistrationID: &registration.ID,
	}
	if payment != nil {
		in.Type = model.TicketTypePaid
		in.Price = payment.Amount
		in.PaymentID = &payment.ID
	}

	ticket, err := s.tickets.Issue(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	confirmed, err := s.registrations.MarkConfirmed(ctx, registration.ID)
	if err != nil {
		return nil, nil, err
	}
	// A cancel that raced the issue above wrote its status before this read.
	if confirmed.Status == model.RegistrationStatusCancelled {
		if _, err := s.tickets.Cancel(ctx, ticket.ID); err != nil && !errors.Is(err, apperrors.ErrInvalidTransition) {
			s.log.Error("Failed to cancel ticket issued for a cancelled registration",
				zap.String("ticket_id", ticket.ID.String()), zap.Error(err))
		}
		return nil, nil, fmt.Errorf("%w: registration was cancelled", apperrors.ErrInvalidTransition)
	}
	s.notifier.OnRegistrationConfirmed(ctx, confirmed, event, ticket)
	return confirmed, ticket, nil
}

func (s *LifecycleServiceImpl) CancelRegistration(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Registration, error) {
	registration, err := s.registrations.Cancel(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	s.releaseRegistration(ctx, id)
	return registration, nil
}

// releaseRegistration cancels the valid ticket of a cancelled registration and fails
// a payment still pending for it. Failures are logged; the cancellation stands.
func (s *LifecycleServiceImpl) releaseRegistration(ctx context.Context, id uuid.UUID) {
	log := s.log.With(zap.String("registration_id", id.String()))

	ticket, err := s.tickets.GetByRegistration(ctx, id)
	switch {
	case err == nil && ticket.Status == model.TicketStatusValid:
		if _, err := s.tickets.Cancel(ctx, ticket.ID); err != nil {
			log.Error("Failed to cancel ticket of cancelled registration", zap.Error(err))
		}
	case err != nil && !errors.Is(err, apperrors.ErrTicketNotFound):
		log.Error("Failed to look up ticket of cancelled registration", zap.Error(err))
	}

	payment, err := s.payments.FindLive(ctx, model.RelatedTypeRegistration, id.String())
	switch {
	case err == nil && payment.Status == model.PaymentStatusPending:
		if _, err := s.payments.FailPayment(ctx, payment.ID, "registration cancelled"); err != nil {
			log.Error("Failed to void pending payment of cancelled registration", zap.Error(err))
		}
	case err == nil && payment.Status == model.PaymentStatusCompleted:
		log.Warn("Cancelled registration has a completed payment, refund required",
			zap.String("payment_id", payment.ID.String()))
	case err != nil && !errors.Is(err, apperrors.ErrPaymentNotFound):
		log.Error("Failed to look up payment of cancelled registration", zap.Error(err))
	}
}

// CreatePayment charges the caller; the payer is always the authenticated user.
func (s *LifecycleServiceImpl) CreatePayment(ctx context.Context, actor model.Identity, in model.CreatePaymentInput) (*model.Payment, error) {
	in.UserID = actor.UserID
	return s.payments.CreatePayment(ctx, in)
}

func (s *LifecycleServiceImpl) CompletePayment(ctx context.Context, id uuid.UUID, gatewayTransactionID string, gatewayResponse json.RawMessage) (*model.PaymentResult, error) {
	payment, err := s.payments.CompletePayment(ctx, id, gatewayTransactionID, gatewayResponse)
	if err != nil {
		return nil, err
	}
	result := &model.PaymentResult{Payment: payment}
	log := s.log.With(zap.String("payment_id", payment.ID.String()))

	var event *model.Event
	if payment.EventID != nil {
		if event, err = s.catalog.GetEvent(ctx, *payment.EventID); err != nil {
			log.Error("Event lookup failed after payment completion", zap.Error(err))
		}
	}
	if payment.RelatedTo != model.RelatedTypeRegistration || event == nil {
		s.notifier.OnPaymentCompleted(ctx, payment, event, nil)
		return result, nil
	}

	registrationID, err := uuid.Parse(payment.RelatedID)
	if err != nil {
		log.Error("Payment carries an invalid registration id", zap.String("related_id", payment.RelatedID))
		return result, nil
	}
	registration, err := s.registrations.Get(ctx, registrationID)
	if err != nil {
		log.Error("Registration lookup failed after payment completion, left for reconciliation", zap.Error(err))
		return result, nil
	}
	if registration.Status != model.RegistrationStatusRegistered {
		log.Warn("Payment completed for an inactive registration, refund required",
			zap.String("registration_id", registration.ID.String()),
			zap.String("registration_status", string(registration.Status)))
		s.notifier.OnPaymentCompleted(ctx, payment, event, nil)
		return result, nil
	}

	_, ticket, err := s.confirm(ctx, registration, event, payment)
	if err != nil {
		log.Error("Paid ticket issuance failed, left for reconciliation",
			zap.String("registration_id", registration.ID.String()),
			zap.Error(err))
		s.notifier.OnPaymentCompleted(ctx, payment, event, nil)
		return result, nil
	}
	result.Ticket = ticket
	s.notifier.OnPaymentCompleted(ctx, payment, event, ticket)
	return result, nil
}

func (s *LifecycleServiceImpl) FailPayment(ctx context.Context, id uuid.UUID, reason string) (*model.Payment, error) {
	return s.payments.FailPayment(ctx, id, reason)
}

func (s *LifecycleServiceImpl) RefundPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return s.payments.RefundPayment(ctx, id)
}

// handleRefund frees what a refunded payment bought: the ticket first, then the registration slot.
func (s *LifecycleServiceImpl) handleRefund(ctx context.Context, payment *model.Payment) error {
	if payment.RelatedTo != model.RelatedTypeRegistration {
		return nil
	}
	registrationID, err := uuid.Parse(payment.RelatedID)
	if err != nil {
		return err
	}

	var errs []error
	ticket, err := s.tickets.GetByRegistration(ctx, registrationID)
	switch {
	case err == nil && ticket.Status == model.TicketStatusValid:
		if _, err := s.tickets.Cancel(ctx, ticket.ID); err != nil {
			errs = append(errs, err)
		}
	case err != nil && !errors.Is(err, apperrors.ErrTicketNotFound):
		errs = append(errs, err)
	}

	if _, err := s.registrations.Cancel(ctx, registrationID, model.SystemIdentity); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *LifecycleServiceImpl) CheckInTicket(ctx context.Context, id uuid.UUID) (*model.CheckInResult, error) {
	result, err := s.tickets.CheckIn(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mirrorCheckIn(ctx, result)
	return result, nil
}

func (s *LifecycleServiceImpl) ScanTicket(ctx context.Context, ticketNumber string) (*model.CheckInResult, error) {
	result, err := s.tickets.CheckInByNumber(ctx, ticketNumber)
	if err != nil {
		return nil, err
	}
	s.mirrorCheckIn(ctx, result)
	return result, nil
}

// mirrorCheckIn marks the linked registration attended. The ticket stays authoritative.
func (s *LifecycleServiceImpl) mirrorCheckIn(ctx context.Context, result *model.CheckInResult) {
	if result.AlreadyCheckedIn || result.Ticket.RegistrationID == nil {
		return
	}
	if _, err := s.registrations.CheckIn(ctx, *result.Ticket.RegistrationID); err != nil {
		s.log.Warn("Failed to mirror ticket check-in on registration",
			zap.String("ticket_id", result.Ticket.ID.String()),
			zap.String("registration_id", result.Ticket.RegistrationID.String()),
			zap.Error(err))
	}
}

func (s *LifecycleServiceImpl) CancelTicket(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanActOn(ticket.UserID) {
		return nil, apperrors.ErrForbidden
	}

	cancelled, err := s.tickets.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if cancelled.RegistrationID != nil {
		if _, err := s.registrations.Cancel(ctx, *cancelled.RegistrationID, model.SystemIdentity); err != nil {
			s.log.Error("Failed to cancel registration of cancelled ticket",
				zap.String("ticket_id", id.String()),
				zap.Error(err))
			return cancelled, nil
		}
		s.releaseRegistration(ctx, *cancelled.RegistrationID)
	}
	return cancelled, nil
}

func (s *LifecycleServiceImpl) ExpireTickets(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.tickets.ExpireEnded(ctx, now)
	if err != nil {
		return 0, err
	}
	metrics.SweepAffectedTotal.WithLabelValues("expire_tickets").Add(float64(n))
	return n, nil
}

// SweepUnpaidRegistrations releases slots held by registrations whose payment deadline
// passed without a live payment.
func (s *LifecycleServiceImpl) SweepUnpaidRegistrations(ctx context.Context, now time.Time) (int, error) {
	events := s.eventLookup()
	swept := 0
	err := s.forEachUnconfirmed(ctx, func(registration *model.Registration) bool {
		log := s.log.With(zap.String("registration_id", registration.ID.String()))

		event, err := events(ctx, registration.EventID)
		if err != nil {
			log.Warn("Skipping registration, event lookup failed", zap.Error(err))
			return true
		}
		terms, paid := event.Paid()
		if !paid || !terms.DeadlinePassed(now) {
			return true
		}

		_, err = s.payments.FindLive(ctx, model.RelatedTypeRegistration, registration.ID.String())
		if err == nil {
			return true
		}
		if !errors.Is(err, apperrors.ErrPaymentNotFound) {
			log.Warn("Skipping registration, payment lookup failed", zap.Error(err))
			return true
		}

		if _, err := s.registrations.Cancel(ctx, registration.ID, model.SystemIdentity); err != nil {
			log.Warn("Failed to cancel unpaid registration", zap.Error(err))
			return true
		}
		swept++
		return true
	})

	metrics.SweepAffectedTotal.WithLabelValues("unpaid_registrations").Add(float64(swept))
	return swept, err
}

// ReconcileTickets issues tickets that an earlier request failed to issue.
func (s *LifecycleServiceImpl) ReconcileTickets(ctx context.Context, now time.Time) (int, error) {
	events := s.eventLookup()
	issued := 0
	err := s.forEachUnconfirmed(ctx, func(registration *model.Registration) bool {
		// Oldest first, so everything from here on is too fresh.
		if now.Sub(registration.RegisteredAt) < reconcileGrace {
			return false
		}
		log := s.log.With(zap.String("registration_id", registration.ID.String()))

		event, err := events(ctx, registration.EventID)
		if err != nil {
			log.Warn("Skipping registration, event lookup failed", zap.Error(err))
			return true
		}

		var payment *model.Payment
		if event.IsPaid() {
			payment, err = s.payments.FindLive(ctx, model.RelatedTypeRegistration, registration.ID.String())
			if err != nil || payment.Status != model.PaymentStatusCompleted {
				return true
			}
		}

		if _, _, err := s.confirm(ctx, registration, event, payment); err != nil {
			log.Warn("Reconciliation failed to issue ticket", zap.Error(err))
			return true
		}
		issued++
		return true
	})

	metrics.SweepAffectedTotal.WithLabelValues("reconciled_tickets").Add(float64(issued))
	return issued, err
}

// forEachUnconfirmed walks every registration still waiting for its ticket, oldest first,
// sweepBatch rows at a time. fn returns false to stop early.
func (s *LifecycleServiceImpl) forEachUnconfirmed(ctx context.Context, fn func(*model.Registration) bool) error {
	var after *model.UnconfirmedCursor
	for {
		batch, err := s.registrations.ListUnconfirmed(ctx, after, s.sweepBatch)
		if err != nil {
			return err
		}
		for _, registration := range batch {
			if !fn(registration) {
				return nil
			}
		}
		if len(batch) < s.sweepBatch {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		after = batch[len(batch)-1].CursorAfter()
	}
}

// eventLookup memoizes catalog reads for the duration of one sweep.
func (s *LifecycleServiceImpl) eventLookup() func(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	seen := make(map[uuid.UUID]*model.Event)
	return func(ctx context.Context, id uuid.UUID) (*model.Event, error) {
		if event, ok := seen[id]; ok {
			return event, nil
		}
		event, err := s.catalog.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		seen[id] = event
		return event, nil
	}
}
