package interfaces

import (
	"context"
	"io"

	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

type GatewayPayment struct {
	ID      string
	OrderID string
	Status  string
	Amount  int64
}

// PaymentGateway is the external payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
	FetchOrder(ctx context.Context, orderID string) (*GatewayOrder, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error)
}

// SignatureVerifier is the admission check for payment confirmations.
type SignatureVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// ArtifactStore persists rendered certificate documents.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (url string, err error)
}

// Notifier sends best-effort notifications; callers log and ignore errors.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, p *models.Payment) error
	CertificateIssued(ctx context.Context, c *models.Certificate) error
}

// Publisher emits domain events to the event stream.
type Publisher interface {
	PaymentTransitioned(ctx context.Context, p *models.Payment, from, to models.PaymentStatus) error
	CertificateIssued(ctx context.Context, c *models.Certificate) error
}

// Locker serializes work on a key across service instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}
