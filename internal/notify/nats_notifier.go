// Package notify hands notification requests (receipts, certificate emails) to
// the mailer service over NATS. Delivery is best-effort.
package notify

import (
	"context"
	"encoding/json"

	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

const (
	SubjectPaymentReceipt    = "notifications.payment.receipt"
	SubjectCertificateIssued = "notifications.certificate.issued"
)

// Conn is the subset of *nats.Conn used here.
type Conn interface {
	Publish(subj string, data []byte) error
}

type NatsNotifier struct {
	conn Conn
}

func NewNatsNotifier(conn Conn) *NatsNotifier {
	return &NatsNotifier{conn: conn}
}

type receiptRequest struct {
	PaymentID string             `json:"payment_id"`
	UserID    string             `json:"user_id"`
	OrderID   string             `json:"order_id"`
	Type      models.PaymentType `json:"type"`
	Amount    int64              `json:"amount"`
	Currency  string             `json:"currency"`
	Receipt   string             `json:"receipt"`
}

type certificateMail struct {
	UID       string `json:"uid"`
	StudentID string `json:"student_id"`
	EventName string `json:"event_name"`
	URL       string `json:"url"`
}

func (n *NatsNotifier) PaymentSucceeded(ctx context.Context, p *models.Payment) error {
	return n.publish(ctx, SubjectPaymentReceipt, receiptRequest{
		PaymentID: p.ID,
		UserID:    p.UserID,
		OrderID:   p.GatewayOrderID,
		Type:      p.Type,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Receipt:   p.Receipt,
	})
}

func (n *NatsNotifier) CertificateIssued(ctx context.Context, c *models.Certificate) error {
	return n.publish(ctx, SubjectCertificateIssued, certificateMail{
		UID:       c.UID,
		StudentID: c.StudentID,
		EventName: c.EventName,
		URL:       c.ArtifactURL,
	})
}

func (n *NatsNotifier) publish(ctx context.Context, subject string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return n.conn.Publish(subject, data)
}
