package models

import "time"

type CertificateKind string

const (
	KindStandard CertificateKind = "standard"
	KindWinner   CertificateKind = "winner"
)

type Certificate struct {
	ID              string          `json:"id"`
	UID             string          `json:"uid"`
	StudentID       string          `json:"studentId"`
	EventID         string          `json:"eventId"`
	OrderID         *string         `json:"orderId,omitempty"`
	Kind            CertificateKind `json:"kind"`
	ArtifactURL     string          `json:"artifactUrl"`
	MarkupURL       string          `json:"markupUrl,omitempty"`
	IssueDate       time.Time       `json:"issueDate"`
	ParticipantName string          `json:"participantName"`
	Sport           string          `json:"sport"`
	EventName       string          `json:"eventName"`
	Position        *int            `json:"position,omitempty"`
	PositionText    string          `json:"positionText,omitempty"`
}

// EvidenceSource names one independent record type that can prove an event's
// coordinator fee was paid.
type EvidenceSource string

const (
	EvidenceEventPayment    EvidenceSource = "event_payment"
	EvidenceOrderAggregate  EvidenceSource = "order_aggregate"
	EvidencePaymentMetadata EvidenceSource = "payment_metadata"
)

// EvidenceSet holds the sources found for an event. Any one of them is enough.
type EvidenceSet []EvidenceSource

func (s EvidenceSet) Paid() bool { return len(s) > 0 }

func (s EvidenceSet) Has(src EvidenceSource) bool {
	for _, v := range s {
		if v == src {
			return true
		}
	}
	return false
}

type GatingMode string

const (
	GatingStudentFee     GatingMode = "student_fee"
	GatingCoordinatorFee GatingMode = "coordinator_fee"
)

// PaymentGate is the eligibility verdict for an event.
type PaymentGate struct {
	Mode     GatingMode  `json:"mode"`
	Paid     bool        `json:"paid"`
	Evidence EvidenceSet `json:"evidence"`
}

type EligibleStudent struct {
	StudentID        string             `json:"studentId"`
	DisplayID        string             `json:"displayId"`
	Name             string             `json:"name"`
	RegistrationID   string             `json:"registrationId"`
	Status           RegistrationStatus `json:"status"`
	SelectedCategory string             `json:"selectedCategory,omitempty"`
}
