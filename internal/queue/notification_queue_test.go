package queue_test

import (
	"context"
	"testing"
	"time"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotification(userID string) *model.Notification {
	return &model.Notification{
		ID:         uuid.New(),
		Kind:       model.NotificationRegistrationConfirmed,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

func TestNotificationQueue_PublishAndSubscribe(t *testing.T) {
	q := queue.NewNotificationQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n := newNotification("u1")
	require.NoError(t, q.PublishNotification(ctx, n))

	deliveries, err := q.SubscribeNotifications(ctx)
	require.NoError(t, err)

	select {
	case d := <-deliveries:
		assert.Equal(t, n.ID, d.Data.ID)
		d.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for delivery")
	}
}

func TestNotificationQueue_NackRequeueRedelivers(t *testing.T) {
	q := queue.NewNotificationQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, q.PublishNotification(ctx, newNotification("u1")))
	deliveries, err := q.SubscribeNotifications(ctx)
	require.NoError(t, err)

	first := <-deliveries
	first.Nack(true)

	select {
	case again := <-deliveries:
		assert.Equal(t, first.Data.ID, again.Data.ID)
	case <-ctx.Done():
		t.Fatal("nacked notification was not redelivered")
	}
}

func TestNotificationQueue_DropsAfterMaxAttempts(t *testing.T) {
	q := queue.NewNotificationQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, q.PublishNotification(ctx, newNotification("u1")))
	deliveries, err := q.SubscribeNotifications(ctx)
	require.NoError(t, err)

	received := 0
	for {
		select {
		case d := <-deliveries:
			received++
			d.Nack(true)
			continue
		case <-time.After(200 * time.Millisecond):
		}
		break
	}
	assert.Equal(t, 5, received)
}

func TestNotificationQueue_PublishRespectsContext(t *testing.T) {
	q := queue.NewNotificationQueue(1)
	require.NoError(t, q.PublishNotification(context.Background(), newNotification("u1")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.PublishNotification(ctx, newNotification("u2"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
