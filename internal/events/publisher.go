// Package events publishes join request decisions to Kafka for downstream
// consumers such as feeds and analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
)

const EventJoinRequestResolved = "join_request.resolved"

// DecisionEvent is the message value. The key is the fishtank id so all
// events of one fishtank land on one partition in order.
type DecisionEvent struct {
	Type        string                   `json:"type"`
	RequestID   string                   `json:"request_id"`
	FishtankID  string                   `json:"fishtank_id"`
	RequesterID string                   `json:"requester_id"`
	ResolvedBy  string                   `json:"resolved_by"`
	Status      domain.JoinRequestStatus `json:"status"`
	MemberCount int64                    `json:"member_count"`
	ResolvedAt  time.Time                `json:"resolved_at"`
}

type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 10 * time.Second
	cfg.Net.WriteTimeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewPublisherWithProducer(producer, topic), nil
}

func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) NotifyDecision(ctx context.Context, notice *domain.DecisionNotice) error {
	req := notice.Resolution.Request
	ev := DecisionEvent{
		Type:        EventJoinRequestResolved,
		RequestID:   req.ID,
		FishtankID:  req.FishtankID,
		RequesterID: req.RequesterID,
		ResolvedBy:  req.ResolvedBy,
		Status:      req.Status,
		MemberCount: notice.Fishtank.MemberCount,
		ResolvedAt:  notice.Resolution.ResolvedAt,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode decision event: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(req.FishtankID),
		Value: sarama.ByteEncoder(value),
	}
	logger.ExternalServiceCall("Kafka", "SendMessage", "topic", p.topic, "requestID", req.ID)
	partition, offset, err := p.producer.SendMessage(msg)
	logger.ExternalServiceResult("Kafka", "SendMessage", err, "partition", partition, "offset", offset)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
