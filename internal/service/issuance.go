package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/certificate"
	"github.com/akylbek/payment-system/event-certificates/internal/interfaces"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

// BulkIssuer is satisfied by certificate.Coordinator.
type BulkIssuer interface {
	IssueMany(ctx context.Context, items []certificate.IssueRequest) certificate.BulkResult
}

// PendingStudentsError blocks a student-fee issuance request in which some
// selected students have not paid yet.
type PendingStudentsError struct {
	StudentIDs []string
}

func (e *PendingStudentsError) Error() string {
	return apperr.ErrStudentPayment.Message + ": " + strings.Join(e.StudentIDs, ", ")
}

func (e *PendingStudentsError) Unwrap() error { return apperr.ErrStudentPayment }

// WinnerSelection is one placed student in an issue-winner request.
type WinnerSelection struct {
	StudentID    string `json:"studentId"`
	Position     int    `json:"position"`
	PositionText string `json:"positionText,omitempty"`
}

type IssueSummary struct {
	Issued       int                     `json:"issued"`
	Failed       int                     `json:"failed"`
	Certificates []models.Certificate    `json:"certificates"`
	Errors       []certificate.ItemError `json:"errors"`
}

type CertificateDeps struct {
	Events        interfaces.EventRepository
	Registrations interfaces.RegistrationRepository
	Students      interfaces.StudentRepository
	Certificates  interfaces.CertificateRepository
	Resolver      *EligibilityResolver
	Bulk          BulkIssuer
	Publisher     interfaces.Publisher
	Notifier      interfaces.Notifier
}

// CertificateService is the caller layer around the generator: it checks
// permissions, payment gating and earlier certificates before anything renders.
type CertificateService struct {
	events        interfaces.EventRepository
	registrations interfaces.RegistrationRepository
	students      interfaces.StudentRepository
	certificates  interfaces.CertificateRepository
	resolver      *EligibilityResolver
	bulk          BulkIssuer
	publisher     interfaces.Publisher
	notifier      interfaces.Notifier
}

func NewCertificateService(deps CertificateDeps) *CertificateService {
	return &CertificateService{
		events:        deps.Events,
		registrations: deps.Registrations,
		students:      deps.Students,
		certificates:  deps.Certificates,
		resolver:      deps.Resolver,
		bulk:          deps.Bulk,
		publisher:     deps.Publisher,
		notifier:      deps.Notifier,
	}
}

// candidate is one requested student on its way to becoming an IssueRequest.
type candidate struct {
	ref          string
	kind         models.CertificateKind
	position     int
	positionText string
}

// IssueStandard issues participation certificates to the selected students.
func (s *CertificateService) IssueStandard(ctx context.Context, actorID, eventID string, studentIDs []string) (*IssueSummary, error) {
	cands := make([]candidate, 0, len(studentIDs))
	for _, id := range studentIDs {
		cands = append(cands, candidate{ref: id, kind: models.KindStandard})
	}
	return s.issue(ctx, actorID, eventID, cands)
}

// IssueWinners issues achievement certificates. A student holds at most one
// winner certificate per event whatever the position.
func (s *CertificateService) IssueWinners(ctx context.Context, actorID, eventID string, winners []WinnerSelection) (*IssueSummary, error) {
	cands := make([]candidate, 0, len(winners))
	for _, w := range winners {
		cands = append(cands, candidate{
			ref:          w.StudentID,
			kind:         models.KindWinner,
			position:     w.Position,
			positionText: w.PositionText,
		})
	}
	return s.issue(ctx, actorID, eventID, cands)
}

func (s *CertificateService) issue(ctx context.Context, actorID, eventID string, cands []candidate) (*IssueSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "certificate.IssueRequest",
		attribute.String("event_id", eventID),
		attribute.Int("requested", len(cands)),
	)
	defer span.End()

	if strings.TrimSpace(eventID) == "" {
		return nil, apperr.Validation("eventId is required")
	}
	if len(cands) == 0 {
		return nil, apperr.Validation("no students selected")
	}

	event, err := s.authorizedEvent(ctx, actorID, eventID)
	if err != nil {
		return nil, err
	}

	gate, err := s.resolver.Gate(ctx, event)
	if err != nil {
		return nil, err
	}
	if !gate.Paid {
		return nil, apperr.ErrEventPaymentNeeded
	}

	items, rejected, err := s.prepare(ctx, event, cands)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		if allAlreadyIssued(rejected) {
			return nil, apperr.ErrAlreadyIssued
		}
		return nil, apperr.Validation("none of the selected students can receive a certificate")
	}

	bulk := s.bulk.IssueMany(ctx, items)
	for i := range bulk.Results {
		s.announce(ctx, &bulk.Results[i])
	}

	errs := append(rejected, bulk.Errors...)
	return &IssueSummary{
		Issued:       len(bulk.Results),
		Failed:       len(errs),
		Certificates: bulk.Results,
		Errors:       errs,
	}, nil
}

// prepare runs every per-student pre-check. Students that cannot be attempted
// come back as item errors; unpaid students in a student-fee event fail the
// whole request.
func (s *CertificateService) prepare(ctx context.Context, event *models.Event, cands []candidate) ([]certificate.IssueRequest, []certificate.ItemError, error) {
	var (
		items    []certificate.IssueRequest
		rejected = []certificate.ItemError{}
		pending  []string
		seen     = make(map[string]struct{}, len(cands))
	)
	reject := func(studentID, displayID, msg string) {
		rejected = append(rejected, certificate.ItemError{StudentID: studentID, DisplayID: displayID, Error: msg})
	}

	for _, c := range cands {
		ref := strings.TrimSpace(c.ref)
		if ref == "" {
			reject(c.ref, "", "student id is required")
			continue
		}
		studentID, err := s.resolver.ResolveStudentID(ctx, ref)
		if err != nil {
			return nil, nil, err
		}
		if studentID == "" {
			reject(ref, "", "student not found")
			continue
		}
		if _, dup := seen[studentID]; dup {
			continue
		}
		seen[studentID] = struct{}{}

		student, err := s.students.GetByID(ctx, studentID)
		if err != nil {
			return nil, nil, err
		}

		reg, err := s.registrations.Get(ctx, event.ID, studentID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				reject(studentID, student.DisplayID, "student is not registered for this event")
				continue
			}
			return nil, nil, err
		}
		switch {
		case reg.Status == models.RegistrationRejected:
			reject(studentID, student.DisplayID, "registration was rejected")
			continue
		case event.StudentFeeMode() && reg.Status != models.RegistrationApproved:
			pending = append(pending, studentID)
			continue
		}

		if c.kind == models.KindWinner && c.position < 1 {
			reject(studentID, student.DisplayID, "position must be 1 or greater")
			continue
		}

		exists, err := s.certificates.Exists(ctx, event.ID, studentID, c.kind)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			reject(studentID, student.DisplayID, apperr.ErrAlreadyIssued.Message)
			continue
		}

		items = append(items, certificate.IssueRequest{
			Student:      *student,
			Event:        *event,
			Kind:         c.kind,
			Position:     c.position,
			PositionText: c.positionText,
		})
	}

	if len(pending) > 0 {
		return nil, nil, &PendingStudentsError{StudentIDs: pending}
	}
	return items, rejected, nil
}

func allAlreadyIssued(errs []certificate.ItemError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if e.Error != apperr.ErrAlreadyIssued.Message {
			return false
		}
	}
	return true
}

func (s *CertificateService) announce(ctx context.Context, c *models.Certificate) {
	if s.publisher != nil {
		if err := s.publisher.CertificateIssued(ctx, c); err != nil {
			telemetry.Logger.Warn("Failed to publish certificate", zap.String("uid", c.UID), zap.Error(err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.CertificateIssued(ctx, c); err != nil {
			telemetry.Logger.Warn("Failed to notify certificate holder", zap.String("uid", c.UID), zap.Error(err))
		}
	}
}

func (s *CertificateService) authorizedEvent(ctx context.Context, actorID, eventID string) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.events.HasPermission(ctx, actorID, eventID, models.PermissionIssueCertificates)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.Forbidden("you do not have permission to issue certificates for this event")
	}
	return event, nil
}

// VerifyUID is the public authenticity check for a certificate identifier.
func (s *CertificateService) VerifyUID(ctx context.Context, uid string) (*models.Certificate, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, apperr.Validation("certificate id is required")
	}
	return s.certificates.GetByUID(ctx, uid)
}

func (s *CertificateService) ListIssued(ctx context.Context, actorID, eventID string) ([]models.Certificate, error) {
	if _, err := s.authorizedEvent(ctx, actorID, eventID); err != nil {
		return nil, err
	}
	return s.certificates.ListByEvent(ctx, eventID)
}

func (s *CertificateService) EligibleStudents(ctx context.Context, actorID, eventID string) ([]models.EligibleStudent, error) {
	event, err := s.authorizedEvent(ctx, actorID, eventID)
	if err != nil {
		return nil, err
	}
	return s.resolver.eligibleFor(ctx, event)
}

func (s *CertificateService) PaymentStatus(ctx context.Context, actorID, eventID string) (*EventPaymentStatus, error) {
	if _, err := s.authorizedEvent(ctx, actorID, eventID); err != nil {
		return nil, err
	}
	return s.resolver.PaymentStatus(ctx, eventID)
}

// MyCertificates lists the caller's certificates, including rows stored under
// their display id.
func (s *CertificateService) MyCertificates(ctx context.Context, userID string) ([]models.Certificate, error) {
	student, err := s.students.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	certs, err := s.certificates.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	if student.DisplayID == "" || student.DisplayID == student.ID {
		return certs, nil
	}
	legacy, err := s.certificates.ListByStudent(ctx, student.DisplayID)
	if err != nil {
		return nil, err
	}
	return append(certs, legacy...), nil
}
