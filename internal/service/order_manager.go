package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/config"
	"github.com/akylbek/payment-system/event-certificates/internal/fee"
	"github.com/akylbek/payment-system/event-certificates/internal/gateway"
	"github.com/akylbek/payment-system/event-certificates/internal/interfaces"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

// OrderManager owns Payment creation: it records the PENDING payment and opens
// the matching gateway order.
type OrderManager struct {
	payments      interfaces.PaymentRepository
	events        interfaces.EventRepository
	registrations interfaces.RegistrationRepository
	students      interfaces.StudentRepository
	gateway       interfaces.PaymentGateway
	fees          config.FeeConfig
	plans         map[string]decimal.Decimal
	currency      string
	now           func() time.Time
}

type OrderManagerDeps struct {
	Payments      interfaces.PaymentRepository
	Events        interfaces.EventRepository
	Registrations interfaces.RegistrationRepository
	Students      interfaces.StudentRepository
	Gateway       interfaces.PaymentGateway
}

func NewOrderManager(deps OrderManagerDeps, fees config.FeeConfig, plans map[string]decimal.Decimal, currency string) *OrderManager {
	return &OrderManager{
		payments:      deps.Payments,
		events:        deps.Events,
		registrations: deps.Registrations,
		students:      deps.Students,
		gateway:       deps.Gateway,
		fees:          fees,
		plans:         plans,
		currency:      currency,
		now:           time.Now,
	}
}

// CreateOrder persists a PENDING payment and then creates the gateway order.
// If the gateway call fails the payment is marked FAILED, so no PENDING row is
// ever left without an order behind it.
func (m *OrderManager) CreateOrder(ctx context.Context, payerID string, amount decimal.Decimal, currency string, pctx models.PaymentContext) (*models.OrderResult, error) {
	if pctx == nil {
		return nil, apperr.Validation("payment context is required")
	}
	ptype := pctx.PaymentType()

	ctx, span := telemetry.StartSpan(ctx, "payment.CreateOrder",
		attribute.String("type", string(ptype)),
		attribute.String("payer_id", payerID),
	)
	defer span.End()

	minor := fee.ToMinorUnits(amount)
	if minor <= 0 {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if currency == "" {
		currency = m.currency
	}

	payment := &models.Payment{
		ID:       uuid.NewString(),
		UserID:   payerID,
		Type:     ptype,
		Amount:   minor,
		Currency: currency,
		Receipt:  gateway.Receipt(payerID, m.now()),
		Status:   models.StatusPending,
		Context:  pctx,
	}
	if err := m.payments.Create(ctx, payment); err != nil {
		telemetry.OrdersCreated.WithLabelValues(string(ptype), "db_error").Inc()
		return nil, err
	}

	notes := map[string]string{"payment_id": payment.ID, "type": string(ptype)}
	if ref := pctx.EventRef(); ref != "" {
		notes["event_id"] = ref
	}

	order, err := m.gateway.CreateOrder(ctx, minor, currency, payment.Receipt, notes)
	if err != nil {
		m.failPayment(payment.ID, err)
		telemetry.OrdersCreated.WithLabelValues(string(ptype), "gateway_error").Inc()
		span.RecordError(err)
		return nil, err
	}

	if err := m.payments.AttachOrder(ctx, payment.ID, order.ID); err != nil {
		m.failPayment(payment.ID, err)
		telemetry.OrdersCreated.WithLabelValues(string(ptype), "db_error").Inc()
		return nil, err
	}

	telemetry.OrdersCreated.WithLabelValues(string(ptype), "success").Inc()
	telemetry.Logger.Info("Payment order created",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", order.ID),
		zap.String("type", string(ptype)),
		zap.Int64("amount", minor),
	)

	return &models.OrderResult{
		PaymentID: payment.ID,
		OrderID:   order.ID,
		Amount:    minor,
		Currency:  currency,
		Receipt:   payment.Receipt,
	}, nil
}

// failPayment uses its own context: the request context may already be the reason we are failing.
func (m *OrderManager) failPayment(paymentID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.payments.MarkFailed(ctx, paymentID, cause.Error()); err != nil {
		telemetry.Logger.Error("Failed to mark payment as FAILED",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}
}

// CreateEventFeeOrder charges the event's coordinator fee. The payer needs the
// fee-management permission on the event.
func (m *OrderManager) CreateEventFeeOrder(ctx context.Context, payerID, eventID string) (*models.OrderResult, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, apperr.Validation("eventId is required")
	}
	event, err := m.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	allowed, err := m.events.HasPermission(ctx, payerID, eventID, models.PermissionManageFees)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.Forbidden("you do not have permission to manage fees for this event")
	}

	paid, err := m.payments.HasSuccessForEvent(ctx, payerID, eventID, models.TypeEventFee)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, apperr.ErrAlreadyPaid
	}

	quote, err := fee.Calculate(fee.ForEvent(event, m.fees))
	if err != nil {
		return nil, err
	}

	result, err := m.CreateOrder(ctx, payerID, quote.Amount, m.currency, models.EventFeeContext{
		EventID:      eventID,
		Participants: quote.Participants,
	})
	if err != nil {
		return nil, err
	}
	if quote.PerStudent.IsPositive() {
		result.PerStudentFee = quote.PerStudent.StringFixed(2)
	}
	return result, nil
}

// CreateStudentFeeOrder charges a student's own participation fee for events
// that collect fees from students.
func (m *OrderManager) CreateStudentFeeOrder(ctx context.Context, payerID, eventID, category string) (*models.OrderResult, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, apperr.Validation("eventId is required")
	}
	event, err := m.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.FeeMode == models.FeeModeDisabled {
		return nil, apperr.ErrPaymentsDisabled
	}
	if !event.StudentFeeMode() {
		return nil, apperr.Validation("student participation fee is not enabled for this event")
	}

	student, err := m.students.GetByUserID(ctx, payerID)
	if err != nil {
		return nil, err
	}

	pctx := models.StudentFeeContext{
		EventID:          eventID,
		StudentID:        student.ID,
		SelectedCategory: strings.TrimSpace(category),
	}

	reg, err := m.registrations.Get(ctx, eventID, student.ID)
	switch {
	case err == nil:
		switch reg.Status {
		case models.RegistrationApproved:
			return nil, apperr.ErrAlreadyPaid
		case models.RegistrationRejected:
			return nil, apperr.Validation("registration for this event was rejected")
		}
		pctx.RegistrationID = reg.ID
		if pctx.SelectedCategory == "" && reg.SelectedCategory != nil {
			pctx.SelectedCategory = *reg.SelectedCategory
		}
	case apperr.KindOf(err) == apperr.KindNotFound:
		// The registration is created when the payment is verified.
	default:
		return nil, err
	}

	paid, err := m.payments.HasSuccessForEvent(ctx, payerID, eventID, models.TypeStudentFee)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, apperr.ErrAlreadyPaid
	}

	result, err := m.CreateOrder(ctx, payerID, event.StudentFeeAmount, m.currency, pctx)
	if err != nil {
		return nil, err
	}
	result.RegistrationID = pctx.RegistrationID
	return result, nil
}

func (m *OrderManager) CreateSubscriptionOrder(ctx context.Context, payerID, planID, userType string) (*models.OrderResult, error) {
	planID = strings.ToLower(strings.TrimSpace(planID))
	price, ok := m.plans[planID]
	if !ok {
		return nil, apperr.Validation("unknown subscription plan")
	}
	return m.CreateOrder(ctx, payerID, price, m.currency, models.SubscriptionContext{
		PlanID:   planID,
		UserType: userType,
	})
}
