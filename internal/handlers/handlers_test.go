package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/certificate"
	"github.com/akylbek/payment-system/event-certificates/internal/middleware"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
	"github.com/akylbek/payment-system/event-certificates/internal/service"
)

type mockOrders struct {
	OrderService
	CreateEventFeeOrderFunc func(payerID, eventID string) (*models.OrderResult, error)
}

func (m *mockOrders) CreateEventFeeOrder(ctx context.Context, payerID, eventID string) (*models.OrderResult, error) {
	return m.CreateEventFeeOrderFunc(payerID, eventID)
}

type mockVerifier struct {
	VerificationService
	VerifyFunc      func(c models.Confirmation) (*models.VerificationResult, error)
	MarkAttemptFunc func(payerID, orderID string, status models.PaymentStatus, details string) (*models.VerificationResult, error)
}

func (m *mockVerifier) Verify(ctx context.Context, c models.Confirmation) (*models.VerificationResult, error) {
	return m.VerifyFunc(c)
}

func (m *mockVerifier) MarkAttempt(ctx context.Context, payerID, orderID string, status models.PaymentStatus, details string) (*models.VerificationResult, error) {
	return m.MarkAttemptFunc(payerID, orderID, status, details)
}

type mockCertificates struct {
	CertificateService
	IssueStandardFunc func(actorID, eventID string, ids []string) (*service.IssueSummary, error)
	VerifyUIDFunc     func(uid string) (*models.Certificate, error)
}

func (m *mockCertificates) IssueStandard(ctx context.Context, actorID, eventID string, ids []string) (*service.IssueSummary, error) {
	return m.IssueStandardFunc(actorID, eventID, ids)
}

func (m *mockCertificates) VerifyUID(ctx context.Context, uid string) (*models.Certificate, error) {
	return m.VerifyUIDFunc(uid)
}

func withUser(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetIdentity(c, userID, role)
		c.Next()
	}
}

func perform(r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp APIResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCreateEventOrder(t *testing.T) {
	orders := &mockOrders{CreateEventFeeOrderFunc: func(payerID, eventID string) (*models.OrderResult, error) {
		assert.Equal(t, "coord", payerID)
		assert.Equal(t, "evt_1", eventID)
		return &models.OrderResult{OrderID: "order_1", Amount: 20000, Currency: "INR", PerStudentFee: "50.00"}, nil
	}}
	h := NewPaymentHandler(orders, &mockVerifier{})
	r := gin.New()
	r.POST("/payment/create-order-events", withUser("coord", "coordinator"), h.CreateEventOrder)

	w, resp := perform(r, http.MethodPost, "/payment/create-order-events", gin.H{"eventId": "evt_1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "order_1", data["orderId"])
	assert.Equal(t, float64(20000), data["amount"])
	assert.Equal(t, "50.00", data["perStudentFee"])
}

func TestCreateEventOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.ErrPaymentsDisabled, http.StatusBadRequest, "payments are disabled for this event"},
		{apperr.Forbidden("no"), http.StatusForbidden, "no"},
		{apperr.ErrAlreadyPaid, http.StatusConflict, "payment already completed for this event"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		orders := &mockOrders{CreateEventFeeOrderFunc: func(string, string) (*models.OrderResult, error) { return nil, tc.err }}
		r := gin.New()
		r.POST("/o", NewPaymentHandler(orders, &mockVerifier{}).CreateEventOrder)

		w, resp := perform(r, http.MethodPost, "/o", gin.H{"eventId": "evt_1"})
		assert.Equal(t, tc.status, w.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, tc.msg, resp.Message)
	}
}

func TestVerify_AcceptsGatewayFieldNames(t *testing.T) {
	var got models.Confirmation
	verifier := &mockVerifier{VerifyFunc: func(c models.Confirmation) (*models.VerificationResult, error) {
		got = c
		return &models.VerificationResult{PaymentID: "pay_1", Status: models.StatusSuccess, AlreadyProcessed: true}, nil
	}}
	r := gin.New()
	r.POST("/payment/verify", withUser("user_1", "student"), NewPaymentHandler(&mockOrders{}, verifier).Verify)

	w, resp := perform(r, http.MethodPost, "/payment/verify", gin.H{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_gw_1",
		"razorpay_signature":  "sig",
		"context":             "student_event_fee",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Payment already processed", resp.Message)
	assert.Equal(t, models.Confirmation{
		OrderID: "order_1", PaymentID: "pay_gw_1", Signature: "sig", PayerID: "user_1", Declared: models.TypeStudentFee,
	}, got)
}

func TestVerify_BadSignature(t *testing.T) {
	verifier := &mockVerifier{VerifyFunc: func(models.Confirmation) (*models.VerificationResult, error) {
		return nil, apperr.ErrSignatureInvalid
	}}
	r := gin.New()
	r.POST("/payment/verify", NewPaymentHandler(&mockOrders{}, verifier).Verify)

	w, resp := perform(r, http.MethodPost, "/payment/verify", gin.H{"orderRef": "o", "confirmationRef": "p", "signature": "x", "context": "event_payment"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "payment signature verification failed", resp.Message)
}

func TestMarkAttempt_NormalizesStatus(t *testing.T) {
	verifier := &mockVerifier{MarkAttemptFunc: func(payerID, orderID string, status models.PaymentStatus, details string) (*models.VerificationResult, error) {
		assert.Equal(t, models.StatusCancelled, status)
		return &models.VerificationResult{PaymentID: "pay_1", Status: status}, nil
	}}
	r := gin.New()
	r.POST("/m", withUser("u", "student"), NewPaymentHandler(&mockOrders{}, verifier).MarkAttempt)

	w, _ := perform(r, http.MethodPost, "/m", gin.H{"eventId": "evt_1", "orderRef": "order_1", "status": "cancelled"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIssue_PartialSuccessIs200(t *testing.T) {
	certs := &mockCertificates{IssueStandardFunc: func(actorID, eventID string, ids []string) (*service.IssueSummary, error) {
		assert.Equal(t, []string{"stu_1", "stu_2"}, ids)
		return &service.IssueSummary{
			Issued:       1,
			Failed:       1,
			Certificates: []models.Certificate{{UID: "SPT-CERT-EVT-STU1"}},
			Errors:       []certificate.ItemError{{StudentID: "stu_2", Error: "student display id is missing"}},
		}, nil
	}}
	r := gin.New()
	r.POST("/certificates/issue", withUser("coord", "coordinator"), NewCertificateHandler(certs).Issue)

	w, resp := perform(r, http.MethodPost, "/certificates/issue", gin.H{"eventId": "evt_1", "selectedStudents": []string{"stu_1", "stu_2"}})
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["issued"])
	assert.Equal(t, float64(1), data["failed"])
	assert.Len(t, data["errors"], 1)
}

func TestIssue_PaymentGating(t *testing.T) {
	certs := &mockCertificates{IssueStandardFunc: func(string, string, []string) (*service.IssueSummary, error) {
		return nil, &service.PendingStudentsError{StudentIDs: []string{"stu_2"}}
	}}
	r := gin.New()
	r.POST("/certificates/issue", NewCertificateHandler(certs).Issue)

	w, resp := perform(r, http.MethodPost, "/certificates/issue", gin.H{"eventId": "evt_1", "selectedStudents": []string{"stu_2"}})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "payment pending for selected students", resp.Message)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, []interface{}{"stu_2"}, data["pendingStudents"])
}

func TestVerifyCertificate(t *testing.T) {
	certs := &mockCertificates{VerifyUIDFunc: func(uid string) (*models.Certificate, error) {
		if uid == "SPT-CERT-EVT-STU1" {
			return &models.Certificate{UID: uid, ParticipantName: "Asel"}, nil
		}
		return nil, apperr.NotFound("certificate not found")
	}}
	r := gin.New()
	r.GET("/certificates/verify/:uid", NewCertificateHandler(certs).Verify)

	w, resp := perform(r, http.MethodGet, "/certificates/verify/SPT-CERT-EVT-STU1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Asel", resp.Data.(map[string]interface{})["participantName"])

	w, resp = perform(r, http.MethodGet, "/certificates/verify/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
}
