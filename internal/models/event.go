package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FeeMode string

const (
	FeeModeGlobal   FeeMode = "GLOBAL"
	FeeModeEvent    FeeMode = "EVENT"
	FeeModeDisabled FeeMode = "DISABLED"
)

// Event is owned by the event management service; this service only reads it
// and bumps the participant counter.
type Event struct {
	ID                string
	DisplayID         string
	Name              string
	Sport             string
	Date              time.Time
	CoordinatorID     string
	FeeMode           FeeMode
	EventFee          decimal.Decimal
	CoordinatorFee    decimal.Decimal
	CreatedByAdmin    bool
	StudentFeeEnabled bool
	StudentFeeAmount  decimal.Decimal
	StudentFeeUnit    string
	ParticipantCount  int
}

// StudentFeeMode reports whether students pay their own participation fee.
// In that mode an APPROVED registration stands in for a verified payment.
func (e *Event) StudentFeeMode() bool {
	return e.CreatedByAdmin && e.StudentFeeEnabled && e.StudentFeeAmount.IsPositive()
}

// Delegated per-event permissions.
const (
	PermissionManageFees        = "manage_fees"
	PermissionIssueCertificates = "issue_certificates"
)

type RegistrationStatus string

const (
	RegistrationRegistered RegistrationStatus = "REGISTERED"
	RegistrationApproved   RegistrationStatus = "APPROVED"
	RegistrationRejected   RegistrationStatus = "REJECTED"
)

type EventRegistration struct {
	ID               string
	EventID          string
	StudentID        string
	Status           RegistrationStatus
	SelectedCategory *string
	// PaymentID links an approval back to the payment that caused it.
	PaymentID *string
	CreatedAt time.Time
}

// EventPayment is the per-event ledger of successful coordinator fee payments.
type EventPayment struct {
	ID               string
	EventID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Amount           int64
	Currency         string
	Status           PaymentStatus
	CreatedAt        time.Time
}

type StudentProfile struct {
	ID        string
	UserID    string
	DisplayID string
	Name      string
}

type PlanActivation struct {
	UserID    string
	PlanID    string
	UserType  string
	ExpiresAt time.Time
}
