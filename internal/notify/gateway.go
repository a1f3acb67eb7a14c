// Package notify turns lifecycle milestones into notifications and delivers them.
package notify

import (
	"context"
	"sync"
	"time"

	"campus-ticketing/internal/metrics"
	"campus-ticketing/internal/model"
	"campus-ticketing/internal/queue"
	"campus-ticketing/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPublishTimeout = 3 * time.Second

// Gateway publishes notifications off the request path. Publish failures are
// logged and counted, never returned.
type Gateway struct {
	publisher queue.NotificationPublisher
	timeout   time.Duration
	log       *zap.Logger
	wg        sync.WaitGroup
}

func NewGateway(publisher queue.NotificationPublisher, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Gateway{
		publisher: publisher,
		timeout:   timeout,
		log:       logger.WithComponent("notify"),
	}
}

func (g *Gateway) OnRegistrationConfirmed(ctx context.Context, registration *model.Registration, event *model.Event, ticket *model.Ticket) {
	g.dispatch(ctx, &model.Notification{
		ID:           uuid.New(),
		Kind:         model.NotificationRegistrationConfirmed,
		UserID:       registration.UserID,
		Event:        event,
		Registration: registration,
		Ticket:       ticket,
		OccurredAt:   time.Now().UTC(),
	})
}

func (g *Gateway) OnPaymentCompleted(ctx context.Context, payment *model.Payment, event *model.Event, ticket *model.Ticket) {
	g.dispatch(ctx, &model.Notification{
		ID:         uuid.New(),
		Kind:       model.NotificationPaymentCompleted,
		UserID:     payment.UserID,
		Event:      event,
		Payment:    payment,
		Ticket:     ticket,
		OccurredAt: time.Now().UTC(),
	})
}

// dispatch publishes on a fresh context. The caller's context may be a pooled request
// context that is reused once the handler returns, so the goroutine never holds it.
func (g *Gateway) dispatch(_ context.Context, n *model.Notification) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		publishCtx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		if err := g.publisher.PublishNotification(publishCtx, n); err != nil {
			metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "publish", "error").Inc()
			g.log.Error("Notification publish failed",
				zap.String("notification_id", n.ID.String()),
				zap.String("kind", string(n.Kind)),
				zap.String("user_id", n.UserID),
				zap.Error(err))
			return
		}
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "publish", "ok").Inc()
	}()
}

// Wait blocks until in-flight publishes finish.
func (g *Gateway) Wait() {
	g.wg.Wait()
}
