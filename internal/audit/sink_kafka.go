package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes audit events to a Kafka topic for downstream consumers
// (SIEM, long-term archival). Events are keyed by token ID so all events for
// one record land on the same partition in order.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// kafkaEvent is the wire shape. Field names are part of the topic contract.
type kafkaEvent struct {
	ID          string    `json:"id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Action      string    `json:"action"`
	ActionType  string    `json:"action_type"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Actor       string    `json:"actor,omitempty"`
	PrincipalID int64     `json:"principal_id,omitempty"`
	TokenID     string    `json:"token_id,omitempty"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
}

// NewKafkaSink connects to the given brokers and ensures the topic exists.
// Returns (nil, nil) when brokers is empty so callers can wire it
// unconditionally.
func NewKafkaSink(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("kafka audit sink enabled", "topic", topic, "brokers", brokers)
	return &KafkaSink{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	res, ok := resp[topic]
	if ok && res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, res.Err)
	}
	return nil
}

func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(kafkaEvent{
		ID:          event.ID,
		OccurredAt:  event.OccurredAt,
		Action:      event.Action,
		ActionType:  string(event.ActionType),
		EntityType:  event.EntityType,
		EntityID:    event.EntityID,
		Actor:       event.Actor,
		PrincipalID: event.PrincipalID,
		TokenID:     event.TokenID,
		Status:      event.Status,
		Notes:       event.Notes,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	key := event.TokenID
	if key == "" {
		key = event.EntityID
	}
	record := &kgo.Record{Topic: s.topic, Key: []byte(key), Value: payload}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
