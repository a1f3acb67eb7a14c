package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"campus-ticketing/internal/model"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentService_CreatePaymentRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paid := f.paidEvent(t, nil)
	closed := f.paidEvent(t, timePtr(time.Now().UTC().Add(-time.Hour)))
	free := f.freeEvent(t, nil)

	paidReg, err := f.registrations.Register(ctx, paid.ID, student.UserID)
	require.NoError(t, err)
	closedReg, err := f.registrations.Register(ctx, closed.ID, student.UserID)
	require.NoError(t, err)
	freeReg, err := f.registrations.Register(ctx, free.ID, student.UserID)
	require.NoError(t, err)

	base := model.CreatePaymentInput{
		UserID:    student.UserID,
		Amount:    50000,
		Method:    model.PaymentMethodUPI,
		RelatedTo: model.RelatedTypeRegistration,
		RelatedID: paidReg.ID.String(),
	}

	tests := []struct {
		name   string
		mutate func(in *model.CreatePaymentInput)
		want   error
	}{
		{"zero amount", func(in *model.CreatePaymentInput) { in.Amount = 0 }, apperrors.ErrInvalidInput},
		{"unknown method", func(in *model.CreatePaymentInput) { in.Method = "barter" }, apperrors.ErrInvalidPaymentMethod},
		{"method not accepted", func(in *model.CreatePaymentInput) { in.Method = model.PaymentMethodCash }, apperrors.ErrInvalidPaymentMethod},
		{"amount mismatch", func(in *model.CreatePaymentInput) { in.Amount = 49999 }, apperrors.ErrAmountMismatch},
		{"other currency", func(in *model.CreatePaymentInput) { in.Currency = "USD" }, apperrors.ErrInvalidInput},
		{"not the owner", func(in *model.CreatePaymentInput) { in.UserID = other.UserID }, apperrors.ErrForbidden},
		{"unknown registration", func(in *model.CreatePaymentInput) { in.RelatedID = uuid.NewString() }, apperrors.ErrRegistrationNotFound},
		{"malformed registration id", func(in *model.CreatePaymentInput) { in.RelatedID = "abc" }, apperrors.ErrInvalidInput},
		{"unsupported target", func(in *model.CreatePaymentInput) { in.RelatedTo = model.RelatedTypeMembership }, apperrors.ErrInvalidInput},
		{"deadline passed", func(in *model.CreatePaymentInput) { in.RelatedID = closedReg.ID.String() }, apperrors.ErrPaymentDeadlinePassed},
		{"free event", func(in *model.CreatePaymentInput) { in.RelatedID = freeReg.ID.String() }, apperrors.ErrInvalidPaymentMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := f.payments.CreatePayment(ctx, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	created, err := f.payments.CreatePayment(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, paid.ID, *created.EventID)

	_, err = f.payments.CreatePayment(ctx, base)
	assert.ErrorIs(t, err, apperrors.ErrPaymentAlreadyExists)
}

func TestPaymentService_FailedPaymentCanBeRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)
	reg, err := f.registrations.Register(ctx, event.ID, student.UserID)
	require.NoError(t, err)

	first := f.pay(t, student, reg)
	failed, err := f.payments.FailPayment(ctx, first.ID, "card declined")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "card declined", *failed.FailureReason)

	_, err = f.payments.CompletePayment(ctx, first.ID, "gw-late", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	second := f.pay(t, student, reg)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)
}

func TestPaymentService_StatusIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)
	reg, err := f.registrations.Register(ctx, event.ID, student.UserID)
	require.NoError(t, err)
	payment := f.pay(t, student, reg)

	_, err = f.payments.RefundPayment(ctx, payment.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	response := json.RawMessage(`{"status":"captured"}`)
	completed, err := f.payments.CompletePayment(ctx, payment.ID, "gw-7", response)
	require.NoError(t, err)
	assert.Equal(t, "gw-7", *completed.GatewayTransactionID)
	assert.JSONEq(t, string(response), string(completed.GatewayResponse))

	_, err = f.payments.FailPayment(ctx, payment.ID, "too late")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.payments.CompletePayment(ctx, payment.ID, "", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.payments.CompletePayment(ctx, uuid.New(), "gw-8", nil)
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
}

func TestPaymentService_RefundHookErrorsDoNotUndoRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)
	reg, err := f.registrations.Register(ctx, event.ID, student.UserID)
	require.NoError(t, err)
	payment := f.pay(t, student, reg)
	_, err = f.payments.CompletePayment(ctx, payment.ID, "gw-1", nil)
	require.NoError(t, err)

	called := false
	f.payments.OnRefund(func(ctx context.Context, p *model.Payment) error {
		called = true
		return apperrors.ErrUnavailable
	})

	refunded, err := f.payments.RefundPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, model.PaymentStatusRefunded, refunded.Status)
}

func TestPaymentService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)
	reg, err := f.registrations.Register(ctx, event.ID, student.UserID)
	require.NoError(t, err)
	f.pay(t, student, reg)

	page, err := f.payments.List(ctx, model.PaymentFilter{UserID: student.UserID})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	page, err = f.payments.List(ctx, model.PaymentFilter{UserID: other.UserID})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Items)

	_, err = f.payments.List(ctx, model.PaymentFilter{Status: "lost"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestPaymentService_RecoversLostCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.paidEvent(t, nil)
	reg, err := f.registrations.Register(ctx, event.ID, student.UserID)
	require.NoError(t, err)

	f.store.LoseReplies("payments.create", 1)
	payment := f.pay(t, student, reg)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)

	page, err := f.payments.List(ctx, model.PaymentFilter{
		RelatedTo: model.RelatedTypeRegistration,
		RelatedID: reg.ID.String(),
	})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, payment.ID, page.Items[0].ID)
	assert.Equal(t, payment.TransactionID, page.Items[0].TransactionID)
}
