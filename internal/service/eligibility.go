package service

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/interfaces"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

const studentRefCacheSize = 4096

type EligibilityDeps struct {
	Events          interfaces.EventRepository
	Registrations   interfaces.RegistrationRepository
	EventPayments   interfaces.EventPaymentRepository
	OrderAggregates interfaces.OrderAggregateRepository
	Payments        interfaces.PaymentRepository
	Certificates    interfaces.CertificateRepository
	Students        interfaces.StudentRepository
}

// EligibilityResolver decides who may receive certificates for an event and
// whether issuance is allowed at all.
type EligibilityResolver struct {
	events          interfaces.EventRepository
	registrations   interfaces.RegistrationRepository
	eventPayments   interfaces.EventPaymentRepository
	orderAggregates interfaces.OrderAggregateRepository
	payments        interfaces.PaymentRepository
	certificates    interfaces.CertificateRepository
	students        interfaces.StudentRepository

	// studentRefs maps a stored student reference (canonical or display id)
	// to the canonical student id.
	studentRefs *lru.Cache[string, string]
}

func NewEligibilityResolver(deps EligibilityDeps) *EligibilityResolver {
	cache, err := lru.New[string, string](studentRefCacheSize)
	if err != nil {
		panic(err)
	}
	return &EligibilityResolver{
		events:          deps.Events,
		registrations:   deps.Registrations,
		eventPayments:   deps.EventPayments,
		orderAggregates: deps.OrderAggregates,
		payments:        deps.Payments,
		certificates:    deps.Certificates,
		students:        deps.Students,
		studentRefs:     cache,
	}
}

// EligibleStatuses returns the registration statuses that qualify under the
// event's gating mode.
func EligibleStatuses(e *models.Event) []models.RegistrationStatus {
	if e.StudentFeeMode() {
		return []models.RegistrationStatus{models.RegistrationApproved}
	}
	return []models.RegistrationStatus{models.RegistrationRegistered, models.RegistrationApproved}
}

// Evidence collects every source proving the event's coordinator fee was paid.
func (r *EligibilityResolver) Evidence(ctx context.Context, eventID string) (models.EvidenceSet, error) {
	set := models.EvidenceSet{}

	ok, err := r.eventPayments.HasSuccess(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ok {
		set = append(set, models.EvidenceEventPayment)
	}

	if ok, err = r.orderAggregates.HasPaidOrder(ctx, eventID); err != nil {
		return nil, err
	}
	if ok {
		set = append(set, models.EvidenceOrderAggregate)
	}

	if ok, err = r.payments.HasAnySuccessForEvent(ctx, eventID); err != nil {
		return nil, err
	}
	if ok {
		set = append(set, models.EvidencePaymentMetadata)
	}
	return set, nil
}

// Gate returns the event-level verdict. Student-fee events are never blocked
// as a whole; each student's APPROVED registration is checked instead.
func (r *EligibilityResolver) Gate(ctx context.Context, e *models.Event) (models.PaymentGate, error) {
	if e.StudentFeeMode() {
		return models.PaymentGate{Mode: models.GatingStudentFee, Paid: true, Evidence: models.EvidenceSet{}}, nil
	}
	set, err := r.Evidence(ctx, e.ID)
	if err != nil {
		return models.PaymentGate{}, err
	}
	return models.PaymentGate{Mode: models.GatingCoordinatorFee, Paid: set.Paid(), Evidence: set}, nil
}

// EligibleStudents lists registrations matching the mode's status filter,
// minus students already holding a standard certificate for the event.
func (r *EligibilityResolver) EligibleStudents(ctx context.Context, eventID string) ([]models.EligibleStudent, error) {
	event, err := r.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return r.eligibleFor(ctx, event)
}

func (r *EligibilityResolver) eligibleFor(ctx context.Context, event *models.Event) ([]models.EligibleStudent, error) {
	regs, err := r.registrations.ListByStatus(ctx, event.ID, EligibleStatuses(event)...)
	if err != nil {
		return nil, err
	}
	issued, err := r.issuedStudents(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	out := make([]models.EligibleStudent, 0, len(regs))
	for _, reg := range regs {
		if _, done := issued[reg.StudentID]; done {
			continue
		}
		profile, err := r.students.GetByID(ctx, reg.StudentID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				telemetry.Logger.Warn("Registration references unknown student",
					zap.String("event_id", event.ID),
					zap.String("student_id", reg.StudentID),
				)
				continue
			}
			return nil, err
		}
		s := models.EligibleStudent{
			StudentID:      profile.ID,
			DisplayID:      profile.DisplayID,
			Name:           profile.Name,
			RegistrationID: reg.ID,
			Status:         reg.Status,
		}
		if reg.SelectedCategory != nil {
			s.SelectedCategory = *reg.SelectedCategory
		}
		out = append(out, s)
	}
	return out, nil
}

// issuedStudents returns the canonical ids of students holding a standard
// certificate for the event. Older rows may store a display id instead.
func (r *EligibilityResolver) issuedStudents(ctx context.Context, eventID string) (map[string]struct{}, error) {
	certs, err := r.certificates.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	issued := make(map[string]struct{}, len(certs))
	for _, c := range certs {
		if c.Kind != models.KindStandard {
			continue
		}
		issued[c.StudentID] = struct{}{}
		canonical, err := r.ResolveStudentID(ctx, c.StudentID)
		if err != nil {
			return nil, err
		}
		if canonical != "" {
			issued[canonical] = struct{}{}
		}
	}
	return issued, nil
}

// ResolveStudentID maps a canonical or display id to the canonical id. It
// returns "" when neither lookup matches.
func (r *EligibilityResolver) ResolveStudentID(ctx context.Context, ref string) (string, error) {
	if id, ok := r.studentRefs.Get(ref); ok {
		return id, nil
	}

	profile, err := r.students.GetByID(ctx, ref)
	if err != nil && apperr.KindOf(err) == apperr.KindNotFound {
		profile, err = r.students.GetByDisplayID(ctx, ref)
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return "", nil
		}
		return "", err
	}
	r.studentRefs.Add(ref, profile.ID)
	return profile.ID, nil
}

// EventPaymentStatus is the payment-gating summary shown to coordinators.
type EventPaymentStatus struct {
	EventID          string                            `json:"eventId"`
	FeeMode          models.FeeMode                    `json:"feeMode"`
	Mode             models.GatingMode                 `json:"mode"`
	Paid             bool                              `json:"paid"`
	Evidence         models.EvidenceSet                `json:"evidence"`
	Sources          map[models.EvidenceSource]bool    `json:"sources,omitempty"`
	StudentFeeAmount string                            `json:"studentFeeAmount,omitempty"`
	Registrations    map[models.RegistrationStatus]int `json:"registrations,omitempty"`
}

func (r *EligibilityResolver) PaymentStatus(ctx context.Context, eventID string) (*EventPaymentStatus, error) {
	event, err := r.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	gate, err := r.Gate(ctx, event)
	if err != nil {
		return nil, err
	}

	status := &EventPaymentStatus{
		EventID:  event.ID,
		FeeMode:  event.FeeMode,
		Mode:     gate.Mode,
		Paid:     gate.Paid,
		Evidence: gate.Evidence,
	}

	if gate.Mode == models.GatingCoordinatorFee {
		status.Sources = map[models.EvidenceSource]bool{
			models.EvidenceEventPayment:    gate.Evidence.Has(models.EvidenceEventPayment),
			models.EvidenceOrderAggregate:  gate.Evidence.Has(models.EvidenceOrderAggregate),
			models.EvidencePaymentMetadata: gate.Evidence.Has(models.EvidencePaymentMetadata),
		}
		return status, nil
	}

	status.StudentFeeAmount = event.StudentFeeAmount.StringFixed(2)
	regs, err := r.registrations.ListByStatus(ctx, event.ID, models.RegistrationRegistered, models.RegistrationApproved)
	if err != nil {
		return nil, err
	}
	status.Registrations = map[models.RegistrationStatus]int{
		models.RegistrationRegistered: 0,
		models.RegistrationApproved:   0,
	}
	for _, reg := range regs {
		status.Registrations[reg.Status]++
	}
	return status, nil
}
