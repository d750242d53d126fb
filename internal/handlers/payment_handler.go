package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/event-certificates/internal/middleware"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

type OrderService interface {
	CreateEventFeeOrder(ctx context.Context, payerID, eventID string) (*models.OrderResult, error)
	CreateStudentFeeOrder(ctx context.Context, payerID, eventID, category string) (*models.OrderResult, error)
	CreateSubscriptionOrder(ctx context.Context, payerID, planID, userType string) (*models.OrderResult, error)
}

type VerificationService interface {
	Verify(ctx context.Context, c models.Confirmation) (*models.VerificationResult, error)
	MarkAttempt(ctx context.Context, payerID, orderID string, status models.PaymentStatus, details string) (*models.VerificationResult, error)
	SyncStatus(ctx context.Context, payerID, orderID string) (*models.VerificationResult, error)
	GetPayment(ctx context.Context, payerID, orderID string) (*models.Payment, error)
}

type PaymentHandler struct {
	orders   OrderService
	verifier VerificationService
}

func NewPaymentHandler(orders OrderService, verifier VerificationService) *PaymentHandler {
	return &PaymentHandler{orders: orders, verifier: verifier}
}

type eventOrderRequest struct {
	EventID string `json:"eventId"`
}

func (h *PaymentHandler) CreateEventOrder(c *gin.Context) {
	var req eventOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.orders.CreateEventFeeOrder(c.Request.Context(), middleware.UserID(c), req.EventID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, "Order created", res)
}

type studentOrderRequest struct {
	EventID          string `json:"eventId"`
	SelectedCategory string `json:"selectedCategory"`
}

func (h *PaymentHandler) CreateStudentEventOrder(c *gin.Context) {
	var req studentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.orders.CreateStudentFeeOrder(c.Request.Context(), middleware.UserID(c), req.EventID, req.SelectedCategory)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, "Order created", res)
}

type subscriptionOrderRequest struct {
	PlanID   string `json:"planId"`
	UserType string `json:"userType"`
}

func (h *PaymentHandler) CreateSubscriptionOrder(c *gin.Context) {
	var req subscriptionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	userType := req.UserType
	if userType == "" {
		userType = middleware.Role(c)
	}
	res, err := h.orders.CreateSubscriptionOrder(c.Request.Context(), middleware.UserID(c), req.PlanID, userType)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, "Order created", res)
}

// verifyRequest accepts both our field names and the gateway checkout's
// razorpay_* names, which clients often forward untouched.
type verifyRequest struct {
	OrderRef        string `json:"orderRef"`
	ConfirmationRef string `json:"confirmationRef"`
	Signature       string `json:"signature"`
	Context         string `json:"context"`
	EventID         string `json:"eventId"`
	UserType        string `json:"userType"`

	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	GatewaySignature string `json:"razorpay_signature"`
}

func (r verifyRequest) confirmation(payerID string) models.Confirmation {
	return models.Confirmation{
		OrderID:   firstNonEmpty(r.OrderRef, r.GatewayOrderID),
		PaymentID: firstNonEmpty(r.ConfirmationRef, r.GatewayPaymentID),
		Signature: firstNonEmpty(r.Signature, r.GatewaySignature),
		PayerID:   payerID,
		Declared:  models.PaymentType(strings.TrimSpace(r.Context)),
		EventID:   r.EventID,
		UserType:  r.UserType,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (h *PaymentHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.verifier.Verify(c.Request.Context(), req.confirmation(middleware.UserID(c)))
	if err != nil {
		fail(c, err)
		return
	}
	message := "Payment verified"
	if res.AlreadyProcessed {
		message = "Payment already processed"
	}
	success(c, message, res)
}

type markAttemptRequest struct {
	EventID  string `json:"eventId"`
	OrderRef string `json:"orderRef"`
	Status   string `json:"status"`
	Details  string `json:"details"`
}

func (h *PaymentHandler) MarkAttempt(c *gin.Context) {
	var req markAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	status := models.PaymentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	res, err := h.verifier.MarkAttempt(c.Request.Context(), middleware.UserID(c), req.OrderRef, status, req.Details)
	if err != nil {
		fail(c, err)
		return
	}
	telemetry.Logger.Info("Checkout attempt closed",
		zap.String("event_id", req.EventID),
		zap.String("order_id", req.OrderRef),
		zap.String("status", string(status)),
	)
	success(c, "Payment status updated", res)
}

func (h *PaymentHandler) SyncStatus(c *gin.Context) {
	res, err := h.verifier.SyncStatus(c.Request.Context(), middleware.UserID(c), c.Param("orderRef"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, "Payment status synchronized", res)
}

type paymentView struct {
	PaymentID        string               `json:"paymentId"`
	OrderID          string               `json:"orderId"`
	Type             models.PaymentType   `json:"type"`
	Amount           int64                `json:"amount"`
	Currency         string               `json:"currency"`
	Status           models.PaymentStatus `json:"status"`
	GatewayPaymentID *string              `json:"confirmationRef,omitempty"`
	EventID          string               `json:"eventId,omitempty"`
	CreatedAt        string               `json:"createdAt"`
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	p, err := h.verifier.GetPayment(c.Request.Context(), middleware.UserID(c), c.Param("orderRef"))
	if err != nil {
		fail(c, err)
		return
	}
	view := paymentView{
		PaymentID:        p.ID,
		OrderID:          p.GatewayOrderID,
		Type:             p.Type,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Status:           p.Status,
		GatewayPaymentID: p.GatewayPaymentID,
		CreatedAt:        p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.Context != nil {
		view.EventID = p.Context.EventRef()
	}
	success(c, "Payment found", view)
}
