package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/event-certificates/internal/handlers"
	"github.com/akylbek/payment-system/event-certificates/internal/middleware"
	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

type RouterDeps struct {
	Payments     *handlers.PaymentHandler
	Certificates *handlers.CertificateHandler
	JWTSecret    string
	// FilesDir, when set, serves locally stored certificate artifacts under /files.
	FilesDir string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "event-certificates"})
	})

	if deps.FilesDir != "" {
		r.Static("/files", deps.FilesDir)
	}

	auth := middleware.Auth(deps.JWTSecret)
	organizer := middleware.RequireRole(middleware.RoleCoordinator)
	student := middleware.RequireRole(middleware.RoleStudent)

	// Payment routes
	payment := r.Group("/payment", auth)
	payment.POST("/create-order-events", organizer, deps.Payments.CreateEventOrder)
	payment.POST("/create-order-student-event", student, deps.Payments.CreateStudentEventOrder)
	payment.POST("/create-order-subscription", deps.Payments.CreateSubscriptionOrder)
	payment.POST("/verify", deps.Payments.Verify)
	payment.POST("/student-event/mark-attempt", student, deps.Payments.MarkAttempt)
	payment.POST("/sync/:orderRef", deps.Payments.SyncStatus)
	payment.GET("/:orderRef", deps.Payments.GetPayment)

	// Certificate routes; verification is public.
	r.GET("/certificates/verify/:uid", deps.Certificates.Verify)
	certs := r.Group("/certificates", auth)
	certs.POST("/issue", organizer, deps.Certificates.Issue)
	certs.POST("/issue-winner", organizer, deps.Certificates.IssueWinners)
	certs.GET("/event/:eventId/eligible-students", organizer, deps.Certificates.EligibleStudents)
	certs.GET("/event/:eventId/payment-status", organizer, deps.Certificates.PaymentStatus)
	certs.GET("/event/:eventId/issued", organizer, deps.Certificates.Issued)
	certs.GET("/my-certificates", student, deps.Certificates.MyCertificates)

	return r
}
