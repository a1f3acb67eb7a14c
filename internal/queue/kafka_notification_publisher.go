package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"campus-ticketing/internal/model"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaNotificationPublisher hands notifications to a Kafka topic for an external
// delivery service. Records are keyed by user so one attendee's messages stay ordered.
type KafkaNotificationPublisher struct {
	client *kgo.Client
}

func NewKafkaNotificationPublisher(brokers []string, topic string) (*KafkaNotificationPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return &KafkaNotificationPublisher{client: client}, nil
}

func (p *KafkaNotificationPublisher) PublishNotification(ctx context.Context, n *model.Notification) error {
	record, err := notificationRecord(n)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

func (p *KafkaNotificationPublisher) Close() {
	p.client.Close()
}

func notificationRecord(n *model.Notification) (*kgo.Record, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return &kgo.Record{
		Key:   []byte(n.UserID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(n.Kind)},
		},
	}, nil
}
