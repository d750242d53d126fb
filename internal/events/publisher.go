// Package events publishes payment and certificate state changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

const (
	TopicPaymentState      = "payment.state.changed"
	TopicCertificateIssued  = "certificate.issued"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaWriter returns a writer without a fixed topic; each message names its own.
func NewKafkaWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, now: time.Now}
}

type paymentStateEvent struct {
	PaymentID     string               `json:"payment_id"`
	OrderID       string               `json:"order_id"`
	UserID        string               `json:"user_id"`
	Type          models.PaymentType   `json:"type"`
	State         models.PaymentStatus `json:"state"`
	PreviousState models.PaymentStatus `json:"previous_state"`
	EventID       string               `json:"event_id,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

type certificateEvent struct {
	UID       string                 `json:"uid"`
	StudentID string                 `json:"student_id"`
	EventID   string                 `json:"event_id"`
	Kind      models.CertificateKind `json:"kind"`
	URL       string                 `json:"url"`
	Timestamp time.Time              `json:"timestamp"`
}

func (p *KafkaPublisher) PaymentTransitioned(ctx context.Context, payment *models.Payment, from, to models.PaymentStatus) error {
	ev := paymentStateEvent{
		PaymentID:     payment.ID,
		OrderID:       payment.GatewayOrderID,
		UserID:        payment.UserID,
		Type:          payment.Type,
		State:         to,
		PreviousState: from,
		Timestamp:     p.now(),
	}
	if payment.Context != nil {
		ev.EventID = payment.Context.EventRef()
	}
	return p.write(ctx, TopicPaymentState, payment.GatewayOrderID, ev)
}

func (p *KafkaPublisher) CertificateIssued(ctx context.Context, c *models.Certificate) error {
	return p.write(ctx, TopicCertificateIssued, c.UID, certificateEvent{
		UID:       c.UID,
		StudentID: c.StudentID,
		EventID:   c.EventID,
		Kind:      c.Kind,
		URL:       c.ArtifactURL,
		Timestamp: p.now(),
	})
}

func (p *KafkaPublisher) write(ctx context.Context, topic, key string, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}
