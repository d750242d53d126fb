package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/interfaces"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

// Gateway order and payment states we act on during a status sync.
const (
	gatewayOrderPaid       = "paid"
	gatewayPaymentCaptured = "captured"
)

type VerificationDeps struct {
	Payments      interfaces.PaymentRepository
	Events        interfaces.EventRepository
	Registrations interfaces.RegistrationRepository
	EventPayments interfaces.EventPaymentRepository
	Students      interfaces.StudentRepository
	Users         interfaces.UserRepository
	Gateway       interfaces.PaymentGateway
	Verifier      interfaces.SignatureVerifier
	Locker        interfaces.Locker
	Publisher     interfaces.Publisher
	Notifier      interfaces.Notifier
}

// VerificationEngine turns a gateway confirmation into exactly one committed
// SUCCESS transition plus its post-payment effect.
type VerificationEngine struct {
	payments      interfaces.PaymentRepository
	events        interfaces.EventRepository
	registrations interfaces.RegistrationRepository
	eventPayments interfaces.EventPaymentRepository
	students      interfaces.StudentRepository
	users         interfaces.UserRepository
	gateway       interfaces.PaymentGateway
	verifier      interfaces.SignatureVerifier
	locker        interfaces.Locker
	publisher     interfaces.Publisher
	notifier      interfaces.Notifier
	now           func() time.Time
}

func NewVerificationEngine(deps VerificationDeps) *VerificationEngine {
	locker := deps.Locker
	if locker == nil {
		locker = noopLocker{}
	}
	return &VerificationEngine{
		payments:      deps.Payments,
		events:        deps.Events,
		registrations: deps.Registrations,
		eventPayments: deps.EventPayments,
		students:      deps.Students,
		users:         deps.Users,
		gateway:       deps.Gateway,
		verifier:      deps.Verifier,
		locker:        locker,
		publisher:     deps.Publisher,
		notifier:      deps.Notifier,
		now:           time.Now,
	}
}

// Verify admits a client-reported confirmation. A bad signature is rejected
// before anything is read or written.
func (e *VerificationEngine) Verify(ctx context.Context, c models.Confirmation) (*models.VerificationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.Verify",
		attribute.String("order_id", c.OrderID),
		attribute.String("context", string(c.Declared)),
	)
	defer span.End()

	if strings.TrimSpace(c.OrderID) == "" || strings.TrimSpace(c.PaymentID) == "" {
		return nil, e.reject("invalid_request", apperr.Validation("orderId and paymentId are required"))
	}
	if !c.Declared.Valid() {
		return nil, e.reject("invalid_request", apperr.Validation("unknown payment context"))
	}
	if !e.verifier.Verify(c.OrderID, c.PaymentID, c.Signature) {
		telemetry.Logger.Warn("Payment signature rejected",
			zap.String("order_id", c.OrderID),
			zap.String("payer_id", c.PayerID),
		)
		return nil, e.reject("signature_invalid", apperr.ErrSignatureInvalid)
	}

	release, ok, err := e.locker.Acquire(ctx, c.OrderID)
	if err != nil {
		telemetry.Logger.Warn("Payment lock unavailable, relying on conditional update",
			zap.String("order_id", c.OrderID),
			zap.Error(err),
		)
	} else if !ok {
		return nil, e.reject("locked", apperr.Conflict("payment verification already in progress"))
	}
	defer release()

	result, err := e.commit(ctx, c)
	if err != nil {
		span.RecordError(err)
		return nil, e.reject("error", err)
	}
	return result, nil
}

func (e *VerificationEngine) reject(outcome string, err error) error {
	telemetry.Verifications.WithLabelValues(outcome).Inc()
	return err
}

// commit performs the compare-and-swap to SUCCESS and, only for the caller
// that wins it, the post-payment effect.
func (e *VerificationEngine) commit(ctx context.Context, c models.Confirmation) (*models.VerificationResult, error) {
	payment, err := e.ownedPayment(ctx, c.OrderID, c.PayerID)
	if err != nil {
		return nil, err
	}
	if payment.Type != c.Declared {
		return nil, apperr.Validation("payment context does not match the order")
	}
	if payment.Status == models.StatusSuccess {
		telemetry.Verifications.WithLabelValues("already_processed").Inc()
		return &models.VerificationResult{PaymentID: payment.ID, Status: models.StatusSuccess, AlreadyProcessed: true}, nil
	}
	from := payment.Status

	rows, err := e.payments.MarkSuccess(ctx, c.OrderID, c.PayerID, c.PaymentID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Lost the race to a concurrent confirmation, or the row vanished.
		current, err := e.ownedPayment(ctx, c.OrderID, c.PayerID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.StatusSuccess {
			telemetry.Verifications.WithLabelValues("already_processed").Inc()
			return &models.VerificationResult{PaymentID: current.ID, Status: models.StatusSuccess, AlreadyProcessed: true}, nil
		}
		return nil, apperr.ErrPaymentNotFound
	}

	payment.Status = models.StatusSuccess
	paymentID := c.PaymentID
	payment.GatewayPaymentID = &paymentID

	telemetry.Verifications.WithLabelValues("success").Inc()
	telemetry.Logger.Info("Payment verified",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", c.OrderID),
		zap.String("type", string(payment.Type)),
	)

	if err := e.applyEffect(ctx, payment, c); err != nil {
		telemetry.Logger.Error("Post-payment effect failed",
			zap.String("payment_id", payment.ID),
			zap.String("type", string(payment.Type)),
			zap.Error(err),
		)
	}
	e.announce(ctx, payment, from)

	return &models.VerificationResult{PaymentID: payment.ID, Status: models.StatusSuccess}, nil
}

// ownedPayment hides payments of other users behind a not-found error.
func (e *VerificationEngine) ownedPayment(ctx context.Context, orderID, payerID string) (*models.Payment, error) {
	payment, err := e.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != payerID {
		return nil, apperr.ErrPaymentNotFound
	}
	return payment, nil
}

func (e *VerificationEngine) applyEffect(ctx context.Context, p *models.Payment, c models.Confirmation) error {
	switch pc := p.Context.(type) {
	case models.SubscriptionContext:
		userType := pc.UserType
		if userType == "" {
			userType = c.UserType
		}
		return e.users.ActivatePlan(ctx, models.PlanActivation{
			UserID:    p.UserID,
			PlanID:    pc.PlanID,
			UserType:  userType,
			ExpiresAt: SubscriptionExpiry(pc.PlanID, e.now()),
		})

	case models.EventFeeContext:
		eventID := pc.EventID
		if eventID == "" {
			eventID = c.EventID
		}
		if eventID == "" {
			return apperr.Validation("event fee payment has no event")
		}
		inserted, err := e.eventPayments.RecordSuccess(ctx, &models.EventPayment{
			ID:               uuid.NewString(),
			EventID:          eventID,
			GatewayOrderID:   p.GatewayOrderID,
			GatewayPaymentID: *p.GatewayPaymentID,
			Amount:           p.Amount,
			Currency:         p.Currency,
			Status:           models.StatusSuccess,
		})
		if err == nil && !inserted {
			telemetry.Logger.Info("Event payment already recorded",
				zap.String("event_id", eventID),
				zap.String("order_id", p.GatewayOrderID),
			)
		}
		return err

	case models.StudentFeeContext:
		return e.approveRegistration(ctx, p, pc, c.EventID)
	}
	return apperr.Validation("payment has no context")
}

func (e *VerificationEngine) approveRegistration(ctx context.Context, p *models.Payment, pc models.StudentFeeContext, fallbackEventID string) error {
	eventID := pc.EventID
	if eventID == "" {
		eventID = fallbackEventID
	}
	if eventID == "" {
		return apperr.Validation("student fee payment has no event")
	}

	studentID := pc.StudentID
	if studentID == "" {
		student, err := e.students.GetByUserID(ctx, p.UserID)
		if err != nil {
			return err
		}
		studentID = student.ID
	}

	var category *string
	if pc.SelectedCategory != "" {
		cat := pc.SelectedCategory
		category = &cat
	}

	created, err := e.registrations.Approve(ctx, eventID, studentID, category, p.ID)
	if err != nil {
		return err
	}
	if created {
		if err := e.events.IncrementParticipants(ctx, eventID); err != nil {
			return err
		}
	}
	telemetry.Logger.Info("Registration approved by payment",
		zap.String("event_id", eventID),
		zap.String("student_id", studentID),
		zap.String("payment_id", p.ID),
		zap.Bool("created", created),
	)
	return nil
}

// announce publishes the transition and requests the receipt notification.
// Neither may affect the committed outcome.
func (e *VerificationEngine) announce(ctx context.Context, p *models.Payment, from models.PaymentStatus) {
	if e.publisher != nil {
		if err := e.publisher.PaymentTransitioned(ctx, p, from, p.Status); err != nil {
			telemetry.Logger.Warn("Failed to publish payment transition", zap.String("payment_id", p.ID), zap.Error(err))
		}
	}
	if e.notifier != nil && p.Status == models.StatusSuccess {
		if err := e.notifier.PaymentSucceeded(ctx, p); err != nil {
			telemetry.Logger.Warn("Failed to send payment receipt", zap.String("payment_id", p.ID), zap.Error(err))
		}
	}
}

// MarkAttempt records an abandoned or failed checkout. SUCCESS is never downgraded.
func (e *VerificationEngine) MarkAttempt(ctx context.Context, payerID, orderID string, status models.PaymentStatus, details string) (*models.VerificationResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, apperr.Validation("orderId is required")
	}
	if status != models.StatusCancelled && status != models.StatusFailed {
		return nil, apperr.Validation("status must be CANCELLED or FAILED")
	}

	payment, err := e.ownedPayment(ctx, orderID, payerID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.StatusSuccess {
		return nil, apperr.Conflict("payment already completed; status cannot be changed")
	}

	rows, err := e.payments.MarkAttempt(ctx, orderID, payerID, status, details)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// A confirmation committed between the read and the update.
		return nil, apperr.Conflict("payment already completed; status cannot be changed")
	}

	from := payment.Status
	payment.Status = status
	payment.FailureDetails = details
	telemetry.Logger.Info("Payment attempt recorded",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", orderID),
		zap.String("status", string(status)),
	)
	e.announce(ctx, payment, from)

	return &models.VerificationResult{PaymentID: payment.ID, Status: status}, nil
}

// SyncStatus reconciles a payment with the gateway's own view of the order.
// The data comes from the gateway directly, so no signature is involved. A
// gateway that reports no captured payment leaves the record untouched.
func (e *VerificationEngine) SyncStatus(ctx context.Context, payerID, orderID string) (*models.VerificationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.SyncStatus", attribute.String("order_id", orderID))
	defer span.End()

	payment, err := e.ownedPayment(ctx, orderID, payerID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.StatusSuccess {
		return &models.VerificationResult{PaymentID: payment.ID, Status: payment.Status, AlreadyProcessed: true}, nil
	}

	order, err := e.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if order.Status != gatewayOrderPaid {
		return &models.VerificationResult{PaymentID: payment.ID, Status: payment.Status}, nil
	}

	attempts, err := e.gateway.FetchOrderPayments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var captured string
	for _, a := range attempts {
		if a.Status == gatewayPaymentCaptured {
			captured = a.ID
			break
		}
	}
	if captured == "" {
		return &models.VerificationResult{PaymentID: payment.ID, Status: payment.Status}, nil
	}

	release, ok, err := e.locker.Acquire(ctx, orderID)
	if err == nil && !ok {
		return nil, apperr.Conflict("payment verification already in progress")
	}
	defer release()

	return e.commit(ctx, models.Confirmation{
		OrderID:   orderID,
		PaymentID: captured,
		PayerID:   payerID,
		Declared:  payment.Type,
	})
}

// GetPayment returns the caller's own payment for an order.
func (e *VerificationEngine) GetPayment(ctx context.Context, payerID, orderID string) (*models.Payment, error) {
	return e.ownedPayment(ctx, orderID, payerID)
}
