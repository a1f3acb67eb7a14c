package worker

import (
	"context"
	"time"

	"campus-ticketing/internal/metrics"
	"campus-ticketing/internal/model"
	"campus-ticketing/internal/queue"
	"campus-ticketing/pkg/logger"

	"go.uber.org/zap"
)

// Deliverer hands a notification to the outside world (email, push, webhook).
type Deliverer interface {
	Deliver(ctx context.Context, n *model.Notification) error
}

type NotificationWorker interface {
	Start(ctx context.Context) error
}

type NotificationWorkerImpl struct {
	queue     queue.NotificationQueue
	deliverer Deliverer
	timeout   time.Duration
	log       *zap.Logger
}

func NewNotificationWorker(q queue.NotificationQueue, deliverer Deliverer, timeout time.Duration) NotificationWorker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotificationWorkerImpl{
		queue:     q,
		deliverer: deliverer,
		timeout:   timeout,
		log:       logger.WithComponent("notification_worker"),
	}
}

// Start consumes until ctx is cancelled. Failed deliveries are nacked for redelivery.
func (w *NotificationWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.SubscribeNotifications(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			if err := w.deliver(ctx, msg.Data); err != nil {
				metrics.NotificationsTotal.WithLabelValues(string(msg.Data.Kind), "deliver", "error").Inc()
				w.log.Warn("Notification delivery failed",
					zap.String("notification_id", msg.Data.ID.String()),
					zap.Error(err))
				msg.Nack(true)
				continue
			}
			metrics.NotificationsTotal.WithLabelValues(string(msg.Data.Kind), "deliver", "ok").Inc()
			msg.Ack()
		}
	}()
	return nil
}

func (w *NotificationWorkerImpl) deliver(ctx context.Context, n *model.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.deliverer.Deliver(ctx, n)
}
