package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

// PaymentRepository defines the contract for payment data access
type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	AttachOrder(ctx context.Context, paymentID, gatewayOrderID string) error
	MarkFailed(ctx context.Context, paymentID, details string) error
	// MarkSuccess moves a non-SUCCESS payment matching (order, payer) to SUCCESS
	// in one conditional update and returns the rows affected.
	MarkSuccess(ctx context.Context, gatewayOrderID, payerID, gatewayPaymentID string) (int64, error)
	// MarkAttempt records a CANCELLED/FAILED outcome; SUCCESS rows are left untouched.
	MarkAttempt(ctx context.Context, gatewayOrderID, payerID string, status models.PaymentStatus, details string) (int64, error)
	GetByOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	HasSuccessForEvent(ctx context.Context, payerID, eventID string, t models.PaymentType) (bool, error)
	HasAnySuccessForEvent(ctx context.Context, eventID string) (bool, error)
}

type EventRepository interface {
	GetByID(ctx context.Context, eventID string) (*models.Event, error)
	IncrementParticipants(ctx context.Context, eventID string) error
	// HasPermission reports whether userID holds permission on the event. The
	// event's coordinator holds every permission.
	HasPermission(ctx context.Context, userID, eventID, permission string) (bool, error)
}

type RegistrationRepository interface {
	Get(ctx context.Context, eventID, studentID string) (*models.EventRegistration, error)
	ListByStatus(ctx context.Context, eventID string, statuses ...models.RegistrationStatus) ([]models.EventRegistration, error)
	// Approve creates the registration as APPROVED or flips an existing one.
	// created is true only when a new row was inserted.
	Approve(ctx context.Context, eventID, studentID string, category *string, paymentID string) (created bool, err error)
}

type EventPaymentRepository interface {
	// RecordSuccess inserts a SUCCESS ledger row keyed by (event, order); it is a no-op when one exists.
	RecordSuccess(ctx context.Context, ep *models.EventPayment) (inserted bool, err error)
	HasSuccess(ctx context.Context, eventID string) (bool, error)
}

// OrderAggregateRepository reads the legacy per-event orders table.
type OrderAggregateRepository interface {
	HasPaidOrder(ctx context.Context, eventID string) (bool, error)
}

type StudentRepository interface {
	GetByID(ctx context.Context, studentID string) (*models.StudentProfile, error)
	GetByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	GetByDisplayID(ctx context.Context, displayID string) (*models.StudentProfile, error)
}

type UserRepository interface {
	ActivatePlan(ctx context.Context, a models.PlanActivation) error
}

type CertificateRepository interface {
	// Create persists a certificate; a duplicate UID is reported as apperr.ErrAlreadyIssued.
	Create(ctx context.Context, c *models.Certificate) error
	GetByUID(ctx context.Context, uid string) (*models.Certificate, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Certificate, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error)
	Exists(ctx context.Context, eventID, studentID string, kind models.CertificateKind) (bool, error)
}
