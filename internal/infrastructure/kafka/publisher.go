package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// MediationEvent is published when a mediation reaches a terminal status, so
// downstream consumers (settlement reporting, analytics) can react without
// polling Firestore.
type MediationEvent struct {
	MediationID string    `json:"mediation_id"`
	ProductID   string    `json:"product_id"`
	SellerID    string    `json:"seller_id"`
	BuyerID     string    `json:"buyer_id"`
	MediatorID  string    `json:"mediator_id,omitempty"`
	Status      string    `json:"status"`
	Outcome     string    `json:"outcome,omitempty"`
	AgreedPrice float64   `json:"agreed_price"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type EventPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewEventPublisher returns nil when no brokers are configured; callers treat
// a nil publisher as disabled.
func NewEventPublisher(brokers []string, topic string) *EventPublisher {
	if len(brokers) == 0 {
		return nil
	}
	return &EventPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

// PublishMediationEvent writes the event keyed by mediation id. Failures are
// logged and swallowed so publishing never blocks a state transition.
func (p *EventPublisher) PublishMediationEvent(ctx context.Context, event MediationEvent) {
	if p == nil {
		return
	}

	value, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal mediation event %s: %v", event.MediationID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.MediationID),
		Value: value,
		Time:  time.Now(),
		Topic: p.topic,
	})
	if err != nil {
		log.Printf("Failed to publish mediation event %s: %v", event.MediationID, err)
	}
}

func (p *EventPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
