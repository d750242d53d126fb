package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusSuccess   PaymentStatus = "SUCCESS"
	StatusFailed    PaymentStatus = "FAILED"
	StatusCancelled PaymentStatus = "CANCELLED"
)

// PaymentType is the declared purpose of a payment. Its string value is the
// "context" clients send to the verify endpoint.
type PaymentType string

const (
	TypeSubscription PaymentType = "subscription"
	TypeEventFee     PaymentType = "event_payment"
	TypeStudentFee   PaymentType = "student_event_fee"
)

func (t PaymentType) Valid() bool {
	switch t {
	case TypeSubscription, TypeEventFee, TypeStudentFee:
		return true
	}
	return false
}

// Payment is one attempt to collect money through the gateway. Amount is in
// the currency's minor unit.
type Payment struct {
	ID               string
	UserID           string
	Type             PaymentType
	Amount           int64
	Currency         string
	Receipt          string
	GatewayOrderID   string
	GatewayPaymentID *string
	Status           PaymentStatus
	Context          PaymentContext
	FailureDetails   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PaymentContext is the typed metadata attached to a payment. Each payment
// type has exactly one context variant.
type PaymentContext interface {
	PaymentType() PaymentType
	// EventRef returns the event the payment is for, or "" when none.
	EventRef() string
}

type SubscriptionContext struct {
	PlanID   string `json:"plan_id"`
	UserType string `json:"user_type,omitempty"`
}

func (SubscriptionContext) PaymentType() PaymentType { return TypeSubscription }
func (SubscriptionContext) EventRef() string         { return "" }

type EventFeeContext struct {
	EventID      string `json:"event_id"`
	Participants int    `json:"participants"`
}

func (EventFeeContext) PaymentType() PaymentType { return TypeEventFee }
func (c EventFeeContext) EventRef() string       { return c.EventID }

type StudentFeeContext struct {
	EventID          string `json:"event_id"`
	StudentID        string `json:"student_id,omitempty"`
	RegistrationID   string `json:"registration_id,omitempty"`
	SelectedCategory string `json:"selected_category,omitempty"`
}

func (StudentFeeContext) PaymentType() PaymentType { return TypeStudentFee }
func (c StudentFeeContext) EventRef() string       { return c.EventID }

func MarshalContext(c PaymentContext) ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

func UnmarshalContext(t PaymentType, raw []byte) (PaymentContext, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch t {
	case TypeSubscription:
		var c SubscriptionContext
		err := json.Unmarshal(raw, &c)
		return c, err
	case TypeEventFee:
		var c EventFeeContext
		err := json.Unmarshal(raw, &c)
		return c, err
	case TypeStudentFee:
		var c StudentFeeContext
		err := json.Unmarshal(raw, &c)
		return c, err
	default:
		return nil, fmt.Errorf("unknown payment type %q", t)
	}
}

// OrderResult is what the client needs to open the gateway checkout.
type OrderResult struct {
	PaymentID      string `json:"paymentId"`
	OrderID        string `json:"orderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PerStudentFee  string `json:"perStudentFee,omitempty"`
	RegistrationID string `json:"registrationId,omitempty"`
}

// Confirmation is a client- or gateway-reported claim that an order was paid.
type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
	PayerID   string
	Declared  PaymentType
	EventID   string
	UserType  string
}

type VerificationResult struct {
	PaymentID        string        `json:"paymentId"`
	Status           PaymentStatus `json:"status"`
	AlreadyProcessed bool          `json:"alreadyProcessed"`
}
