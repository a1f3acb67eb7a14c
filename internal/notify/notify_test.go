package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"campus-ticketing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	got  []*model.Notification
	err  error
	ctxs []context.Context
}

func (p *recordingPublisher) PublishNotification(ctx context.Context, n *model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, n)
	p.ctxs = append(p.ctxs, ctx)
	return p.err
}

func TestGateway_PublishesAfterCallerIsDone(t *testing.T) {
	pub := &recordingPublisher{}
	g := NewGateway(pub, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	reg := &model.Registration{ID: uuid.New(), UserID: "u1"}
	g.OnRegistrationConfirmed(ctx, reg, &model.Event{ID: uuid.New()}, nil)
	cancel()
	g.OnPaymentCompleted(ctx, &model.Payment{ID: uuid.New(), UserID: "u2"}, nil, nil)
	g.Wait()

	require.Len(t, pub.got, 2)
	kinds := map[model.NotificationKind]string{}
	for _, n := range pub.got {
		kinds[n.Kind] = n.UserID
	}
	assert.Equal(t, "u1", kinds[model.NotificationRegistrationConfirmed])
	assert.Equal(t, "u2", kinds[model.NotificationPaymentCompleted])
	for _, c := range pub.ctxs {
		_, hasDeadline := c.Deadline()
		assert.True(t, hasDeadline)
	}
}

type ctxKey struct{}

func TestGateway_DoesNotRetainCallerContext(t *testing.T) {
	pub := &recordingPublisher{}
	g := NewGateway(pub, time.Second)

	ctx := context.WithValue(context.Background(), ctxKey{}, "request-scoped")
	g.OnRegistrationConfirmed(ctx, &model.Registration{ID: uuid.New(), UserID: "u1"}, nil, nil)
	g.Wait()

	require.Len(t, pub.ctxs, 1)
	assert.Nil(t, pub.ctxs[0].Value(ctxKey{}))
	assert.NoError(t, pub.ctxs[0].Err())
}

func TestGateway_PublishErrorIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	g := NewGateway(pub, time.Second)

	assert.NotPanics(t, func() {
		g.OnRegistrationConfirmed(context.Background(), &model.Registration{UserID: "u1"}, nil, nil)
		g.Wait()
	})
	assert.Len(t, pub.got, 1)
}

func TestWebhookDeliverer(t *testing.T) {
	var received model.Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, string(model.NotificationPaymentCompleted), r.Header.Get("X-Notification-Kind"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := &model.Notification{ID: uuid.New(), Kind: model.NotificationPaymentCompleted, UserID: "u1"}
	err := NewWebhookDeliverer(server.URL, time.Second).Deliver(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, n.ID, received.ID)
}

func TestWebhookDeliverer_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mailbox full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewWebhookDeliverer(server.URL, time.Second).Deliver(context.Background(), &model.Notification{ID: uuid.New()})
	assert.ErrorContains(t, err, "503")
}

func TestLogDeliverer(t *testing.T) {
	assert.NoError(t, NewLogDeliverer().Deliver(context.Background(), &model.Notification{ID: uuid.New()}))
}
