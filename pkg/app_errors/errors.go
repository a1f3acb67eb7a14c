package apperrors

import "errors"

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrTicketNotFound       = errors.New("ticket not found")

	ErrAlreadyRegistered    = errors.New("already registered")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrPaymentAlreadyExists = errors.New("payment already exists")

	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrAmountMismatch        = errors.New("amount mismatch")
	ErrPaymentDeadlinePassed = errors.New("payment deadline passed")
	ErrTicketNotRedeemable   = errors.New("ticket not redeemable")

	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable is returned once transient storage failures exhaust their retries.
	ErrUnavailable = errors.New("service unavailable")
)
