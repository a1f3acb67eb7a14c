package service

import (
	"errors"

	apperrors "campus-ticketing/pkg/app_errors"
)

var outcomeLabels = []struct {
	err   error
	label string
}{
	{apperrors.ErrAlreadyRegistered, "already_registered"},
	{apperrors.ErrCapacityExceeded, "capacity_exceeded"},
	{apperrors.ErrEventNotFound, "event_not_found"},
	{apperrors.ErrInvalidTransition, "invalid_transition"},
	{apperrors.ErrPaymentAlreadyExists, "payment_exists"},
	{apperrors.ErrInvalidPaymentMethod, "invalid_method"},
	{apperrors.ErrAmountMismatch, "amount_mismatch"},
	{apperrors.ErrPaymentDeadlinePassed, "deadline_passed"},
	{apperrors.ErrTicketNotRedeemable, "not_redeemable"},
	{apperrors.ErrTicketNotFound, "ticket_not_found"},
	{apperrors.ErrForbidden, "forbidden"},
	{apperrors.ErrInvalidInput, "invalid_input"},
	{apperrors.ErrUnavailable, "unavailable"},
}

// outcome maps an operation result to a low-cardinality metric label.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomeLabels {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}
