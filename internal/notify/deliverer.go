package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"campus-ticketing/internal/model"
	"campus-ticketing/pkg/logger"

	"go.uber.org/zap"
)

// WebhookDeliverer posts each notification as JSON to a delivery service (email, push).
type WebhookDeliverer struct {
	url string
	hc  *http.Client
}

func NewWebhookDeliverer(url string, timeout time.Duration) *WebhookDeliverer {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &WebhookDeliverer{url: url, hc: &http.Client{Timeout: timeout}}
}

func (d *WebhookDeliverer) Deliver(ctx context.Context, n *model.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("webhook: json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-Id", n.ID.String())
	req.Header.Set("X-Notification-Kind", string(n.Kind))

	resp, err := d.hc.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rbody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook: resp.StatusCode: %d, resp.Body: %s", resp.StatusCode, rbody)
	}
	return nil
}

// LogDeliverer records notifications in the log when no delivery service is configured.
type LogDeliverer struct {
	log *zap.Logger
}

func NewLogDeliverer() *LogDeliverer {
	return &LogDeliverer{log: logger.WithComponent("notify")}
}

func (d *LogDeliverer) Deliver(ctx context.Context, n *model.Notification) error {
	d.log.Info("Notification",
		zap.String("notification_id", n.ID.String()),
		zap.String("kind", string(n.Kind)),
		zap.String("user_id", n.UserID))
	return nil
}
