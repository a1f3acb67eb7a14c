package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationRegistrationConfirmed NotificationKind = "registration.confirmed"
	NotificationPaymentCompleted      NotificationKind = "payment.completed"
)

// Notification is the message handed to the notification gateway.
type Notification struct {
	ID           uuid.UUID        `json:"id"`
	Kind         NotificationKind `json:"kind"`
	UserID       string           `json:"user_id"`
	Event        *Event           `json:"event,omitempty"`
	Registration *Registration    `json:"registration,omitempty"`
	Payment      *Payment         `json:"payment,omitempty"`
	Ticket       *Ticket          `json:"ticket,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}
