package queue

import (
	"context"
	"errors"

	"campus-ticketing/internal/model"
	"campus-ticketing/pkg/logger"

	"go.uber.org/zap"
)

var ErrQueueClosed = errors.New("notification queue closed")

type Delivery struct {
	Data *model.Notification
	Ack  func()
	Nack func(requeue bool)
}

// NotificationPublisher is the write side, enough for a gateway that only emits.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n *model.Notification) error
}

type NotificationQueue interface {
	NotificationPublisher
	SubscribeNotifications(ctx context.Context) (<-chan Delivery, error)
}

type memoryItem struct {
	notification *model.Notification
	attempts     int
}

// NotificationQueueImpl is an in-process queue backed by a buffered channel.
type NotificationQueueImpl struct {
	ch          chan memoryItem
	maxAttempts int
}

const defaultMaxAttempts = 5

func NewNotificationQueue(bufferSize int) NotificationQueue {
	return &NotificationQueueImpl{
		ch:          make(chan memoryItem, bufferSize),
		maxAttempts: defaultMaxAttempts,
	}
}

func (q *NotificationQueueImpl) PublishNotification(ctx context.Context, n *model.Notification) error {
	select {
	case q.ch <- memoryItem{notification: n}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *NotificationQueueImpl) SubscribeNotifications(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case item := <-q.ch:
				select {
				case out <- q.newDelivery(item):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (q *NotificationQueueImpl) newDelivery(item memoryItem) Delivery {
	return Delivery{
		Data: item.notification,
		Ack:  func() {},
		Nack: func(requeue bool) {
			if !requeue {
				return
			}
			item.attempts++
			if item.attempts >= q.maxAttempts {
				logger.WithComponent("mq").Warn("Discard notification after max attempts",
					zap.String("notification_id", item.notification.ID.String()),
					zap.Int("attempts", item.attempts))
				return
			}
			// Requeue without blocking the consumer that nacked.
			go func() { q.ch <- item }()
		},
	}
}
