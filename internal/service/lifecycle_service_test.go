package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/service"
	apperrors "campus-ticketing/pkg/app_errors"
	"campus-ticketing/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Free event with one seat: first registration gets a ticket, second is turned away.
func TestLifecycle_FreeEventCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, intPtr(1))

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, model.TicketTypeFree, result.Ticket.Type)
	assert.Equal(t, model.TicketStatusValid, result.Ticket.Status)
	assert.Equal(t, int64(0), result.Ticket.Price)
	assert.True(t, result.Registration.IsConfirmed())

	_, err = f.lifecycle.Register(ctx, other, event.ID)
	assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded)

	confirmed, _ := f.notifier.counts()
	assert.Equal(t, 1, confirmed)
}

func TestLifecycle_PaidEventFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	assert.Nil(t, result.Ticket)
	assert.False(t, result.Registration.IsConfirmed())

	_, err = f.lifecycle.CreatePayment(ctx, student, model.CreatePaymentInput{
		Amount:    50000,
		Method:    model.PaymentMethodCard,
		RelatedTo: model.RelatedTypeRegistration,
		RelatedID: result.Registration.ID.String(),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidPaymentMethod)

	payment := f.pay(t, student, result.Registration)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	assert.Equal(t, "INR", payment.Currency)
	assert.Regexp(t, `^TXN-[0-9A-F]{16}$`, payment.TransactionID)

	completed, err := f.lifecycle.CompletePayment(ctx, payment.ID, "gw-123", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, completed.Payment.Status)
	assert.NotNil(t, completed.Payment.PaidAt)
	require.NotNil(t, completed.Ticket)
	assert.Equal(t, model.TicketTypePaid, completed.Ticket.Type)
	assert.Equal(t, int64(50000), completed.Ticket.Price)
	assert.Equal(t, payment.ID, *completed.Ticket.PaymentID)

	_, err = f.lifecycle.CompletePayment(ctx, payment.ID, "gw-123", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	reg, err := f.registrations.Get(ctx, result.Registration.ID)
	require.NoError(t, err)
	assert.True(t, reg.IsConfirmed())

	confirmedCount, completedCount := f.notifier.counts()
	assert.Equal(t, 1, confirmedCount)
	assert.Equal(t, 1, completedCount)
}

func TestLifecycle_CancelFreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, intPtr(10))

	before, err := f.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)

	cancelled, err := f.lifecycle.CancelRegistration(ctx, student, result.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationStatusCancelled, cancelled.Status)

	after, err := f.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, before.RegisteredCount, after.RegisteredCount)

	ticket, err := f.tickets.Get(ctx, result.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusCancelled, ticket.Status)

	again, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	assert.NotEqual(t, result.Registration.ID, again.Registration.ID)
}

func TestLifecycle_UsedTicketCannotBeCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)

	checkIn, err := f.lifecycle.CheckInTicket(ctx, result.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusUsed, checkIn.Ticket.Status)
	assert.False(t, checkIn.AlreadyCheckedIn)

	reg, err := f.registrations.Get(ctx, result.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationStatusAttended, reg.Status)

	_, err = f.lifecycle.CancelTicket(ctx, student, result.Ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestLifecycle_ConcurrentRegistrationsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, intPtr(10))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := model.Identity{UserID: "user-" + string(rune('A'+i%26)) + string(rune('a'+i/26)), Role: model.RoleStudent}
			_, err := f.lifecycle.Register(ctx, actor, event.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, success)
	assert.Equal(t, 40, rejected)

	stored, err := f.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.RegisteredCount)

	tickets, err := f.tickets.List(ctx, model.TicketFilter{EventID: &event.ID})
	require.NoError(t, err)
	assert.Equal(t, 10, tickets.Total)
}

func TestLifecycle_ConcurrentSameUserRegistersOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		success   int
		duplicate int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.lifecycle.Register(ctx, student, event.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
			} else if assert.ErrorIs(t, err, apperrors.ErrAlreadyRegistered) {
				duplicate++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 24, duplicate)
}

func TestLifecycle_PaymentForCancelledRegistrationIssuesNoTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	payment := f.pay(t, student, result.Registration)

	// Cancel straight on the registration service so the pending payment is left alone.
	_, err = f.registrations.Cancel(ctx, result.Registration.ID, student)
	require.NoError(t, err)

	completed, err := f.lifecycle.CompletePayment(ctx, payment.ID, "gw-9", nil)
	require.NoError(t, err)
	assert.Nil(t, completed.Ticket)

	_, err = f.tickets.GetByRegistration(ctx, result.Registration.ID)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}

func TestLifecycle_CancelRegistrationVoidsPendingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	payment := f.pay(t, student, result.Registration)

	_, err = f.lifecycle.CancelRegistration(ctx, student, result.Registration.ID)
	require.NoError(t, err)

	voided, err := f.payments.Get(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, voided.Status)
	require.NotNil(t, voided.FailureReason)
}

func TestLifecycle_RefundCancelsTicketAndRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	payment := f.pay(t, student, result.Registration)
	completed, err := f.lifecycle.CompletePayment(ctx, payment.ID, "gw-1", nil)
	require.NoError(t, err)

	refunded, err := f.lifecycle.RefundPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRefunded, refunded.Status)
	assert.NotNil(t, refunded.RefundedAt)

	ticket, err := f.tickets.Get(ctx, completed.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusCancelled, ticket.Status)

	reg, err := f.registrations.Get(ctx, result.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationStatusCancelled, reg.Status)

	stored, err := f.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.RegisteredCount)

	_, err = f.lifecycle.RefundPayment(ctx, payment.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestLifecycle_ScanTicketIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)

	first, err := f.lifecycle.ScanTicket(ctx, result.Ticket.TicketNumber)
	require.NoError(t, err)
	assert.False(t, first.AlreadyCheckedIn)

	second, err := f.lifecycle.ScanTicket(ctx, result.Ticket.TicketNumber)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCheckedIn)
	assert.Equal(t, first.Ticket.CheckedInAt, second.Ticket.CheckedInAt)

	_, err = f.lifecycle.ScanTicket(ctx, "TKT-DOESNOTEXIST")
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}

func TestLifecycle_CancelTicketRequiresOwnerOrOperator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.CancelTicket(ctx, other, result.Ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	cancelled, err := f.lifecycle.CancelTicket(ctx, staff, result.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusCancelled, cancelled.Status)

	reg, err := f.registrations.Get(ctx, result.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationStatusCancelled, reg.Status)
}

func TestLifecycle_FreeTicketFailureIsReconciled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)

	f.store.FailTimes("tickets.create", 10)
	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	assert.Nil(t, result.Ticket)
	assert.False(t, result.Registration.IsConfirmed())
	f.store.SetFault(nil)

	// Too fresh for reconciliation.
	n, err := f.lifecycle.ReconcileTickets(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.lifecycle.ReconcileTickets(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ticket, err := f.tickets.GetByRegistration(ctx, result.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketTypeFree, ticket.Type)

	n, err = f.lifecycle.ReconcileTickets(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLifecycle_SweepUnpaidRegistrations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deadline := time.Now().UTC().Add(time.Hour)
	event := f.paidEvent(t, &deadline)

	unpaid, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	paying, err := f.lifecycle.Register(ctx, other, event.ID)
	require.NoError(t, err)
	f.pay(t, other, paying.Registration)

	n, err := f.lifecycle.SweepUnpaidRegistrations(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.lifecycle.SweepUnpaidRegistrations(ctx, deadline.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reg, err := f.registrations.Get(ctx, unpaid.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationStatusCancelled, reg.Status)

	reg, err = f.registrations.Get(ctx, paying.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationStatusRegistered, reg.Status)
}

func TestLifecycle_ExpireTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	endsAt := time.Now().UTC().Add(time.Hour)
	event, err := f.events.Create(ctx, model.CreateEventRequest{Name: "Seminar", EndsAt: &endsAt})
	require.NoError(t, err)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)

	n, err := f.lifecycle.ExpireTickets(ctx, endsAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.lifecycle.CheckInTicket(ctx, result.Ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotRedeemable)
}

// cancellingTickets cancels the registration right after its ticket is issued,
// the interleaving of a cancel request landing mid-confirmation.
type cancellingTickets struct {
	service.TicketService
	registrations service.RegistrationService
}

func (c cancellingTickets) Issue(ctx context.Context, in model.IssueTicketInput) (*model.Ticket, error) {
	ticket, err := c.TicketService.Issue(ctx, in)
	if err != nil {
		return nil, err
	}
	if _, err := c.registrations.Cancel(ctx, *in.RegistrationID, student); err != nil {
		return nil, err
	}
	return ticket, nil
}

func TestLifecycle_CancelDuringConfirmationVoidsTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)

	tickets := cancellingTickets{TicketService: f.tickets, registrations: f.registrations}
	lifecycle := service.NewLifecycleService(f.events, f.registrations, f.payments, tickets, f.notifier, 50)

	result, err := lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	assert.Nil(t, result.Ticket)

	ticket, err := f.tickets.GetByRegistration(ctx, result.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusCancelled, ticket.Status)

	confirmed, _ := f.notifier.counts()
	assert.Equal(t, 0, confirmed)
}

// The fixture walks 50 rows per batch; due work sits behind more than a batch of rows that are not due.
func TestLifecycle_SweepsReachPastFirstBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	later := f.paidEvent(t, timePtr(now.Add(24*time.Hour)))
	for i := 0; i < 60; i++ {
		actor := model.Identity{UserID: fmt.Sprintf("waiting-%d", i), Role: model.RoleStudent}
		_, err := f.lifecycle.Register(ctx, actor, later.ID)
		require.NoError(t, err)
	}

	soon := f.paidEvent(t, timePtr(now.Add(time.Minute)))
	overdue, err := f.lifecycle.Register(ctx, student, soon.ID)
	require.NoError(t, err)

	free := f.freeEvent(t, nil)
	f.store.FailTimes("tickets.create", 10)
	missing, err := f.lifecycle.Register(ctx, other, free.ID)
	require.NoError(t, err)
	require.Nil(t, missing.Ticket)
	f.store.SetFault(nil)

	swept, err := f.lifecycle.SweepUnpaidRegistrations(ctx, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	reg, err := f.registrations.Get(ctx, overdue.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationStatusCancelled, reg.Status)

	stillWaiting, err := f.registrations.List(ctx, model.RegistrationFilter{
		EventID:    &later.ID,
		Status:     model.RegistrationStatusRegistered,
		PageParams: model.PageParams{Page: 1, PageSize: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, 60, stillWaiting.Total)

	reconciled, err := f.lifecycle.ReconcileTickets(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, reconciled)

	ticket, err := f.tickets.GetByRegistration(ctx, missing.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketTypeFree, ticket.Type)
}

func TestLifecycle_CancelPaidTicketFlagsRefund(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)

	result, err := f.lifecycle.Register(ctx, student, event.ID)
	require.NoError(t, err)
	payment := f.pay(t, student, result.Registration)
	completed, err := f.lifecycle.CompletePayment(ctx, payment.ID, "gw-1", nil)
	require.NoError(t, err)
	require.NotNil(t, completed.Ticket)

	_, err = f.lifecycle.CancelTicket(ctx, student, completed.Ticket.ID)
	require.NoError(t, err)

	reg, err := f.registrations.Get(ctx, result.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationStatusCancelled, reg.Status)

	stored, err := f.payments.Get(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, stored.Status)

	flagged := logs.FilterMessage("Cancelled registration has a completed payment, refund required").All()
	require.Len(t, flagged, 1)
	assert.Equal(t, payment.ID.String(), flagged[0].ContextMap()["payment_id"])
}
