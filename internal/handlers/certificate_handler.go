package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/event-certificates/internal/middleware"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
	"github.com/akylbek/payment-system/event-certificates/internal/service"
)

type CertificateService interface {
	IssueStandard(ctx context.Context, actorID, eventID string, studentIDs []string) (*service.IssueSummary, error)
	IssueWinners(ctx context.Context, actorID, eventID string, winners []service.WinnerSelection) (*service.IssueSummary, error)
	EligibleStudents(ctx context.Context, actorID, eventID string) ([]models.EligibleStudent, error)
	PaymentStatus(ctx context.Context, actorID, eventID string) (*service.EventPaymentStatus, error)
	ListIssued(ctx context.Context, actorID, eventID string) ([]models.Certificate, error)
	VerifyUID(ctx context.Context, uid string) (*models.Certificate, error)
	MyCertificates(ctx context.Context, userID string) ([]models.Certificate, error)
}

type CertificateHandler struct {
	certs CertificateService
}

func NewCertificateHandler(certs CertificateService) *CertificateHandler {
	return &CertificateHandler{certs: certs}
}

type issueRequest struct {
	EventID          string   `json:"eventId"`
	SelectedStudents []string `json:"selectedStudents"`
}

func (h *CertificateHandler) Issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.certs.IssueStandard(c.Request.Context(), middleware.UserID(c), req.EventID, req.SelectedStudents)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, issueMessage(res), res)
}

type issueWinnerRequest struct {
	EventID                       string                    `json:"eventId"`
	SelectedStudentsWithPositions []service.WinnerSelection `json:"selectedStudentsWithPositions"`
}

func (h *CertificateHandler) IssueWinners(c *gin.Context) {
	var req issueWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	res, err := h.certs.IssueWinners(c.Request.Context(), middleware.UserID(c), req.EventID, req.SelectedStudentsWithPositions)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, issueMessage(res), res)
}

func issueMessage(res *service.IssueSummary) string {
	if res.Failed == 0 {
		return "Certificates issued"
	}
	return "Certificates issued with some failures"
}

func (h *CertificateHandler) EligibleStudents(c *gin.Context) {
	list, err := h.certs.EligibleStudents(c.Request.Context(), middleware.UserID(c), c.Param("eventId"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, "Eligible students", list)
}

func (h *CertificateHandler) PaymentStatus(c *gin.Context) {
	status, err := h.certs.PaymentStatus(c.Request.Context(), middleware.UserID(c), c.Param("eventId"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, "Payment status", status)
}

func (h *CertificateHandler) Issued(c *gin.Context) {
	list, err := h.certs.ListIssued(c.Request.Context(), middleware.UserID(c), c.Param("eventId"))
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []models.Certificate{}
	}
	success(c, "Issued certificates", list)
}

func (h *CertificateHandler) Verify(c *gin.Context) {
	cert, err := h.certs.VerifyUID(c.Request.Context(), c.Param("uid"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, "Certificate is valid", cert)
}

func (h *CertificateHandler) MyCertificates(c *gin.Context) {
	list, err := h.certs.MyCertificates(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []models.Certificate{}
	}
	success(c, "My certificates", list)
}
