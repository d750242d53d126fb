// Package certificate renders and records participation and winner certificates.
package certificate

import (
	"bytes"
	"context"
	"fmt"
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

const (
	dateLayout = "02 January 2006"

	contentTypePDF  = "application/pdf"
	contentTypeHTML = "text/html; charset=utf-8"
)

// IssueRequest describes one certificate to produce. Student and Event carry
// both canonical ids (persisted) and display ids (used in the UID and paths).
type IssueRequest struct {
	Student      models.StudentProfile
	Event        models.Event
	Kind         models.CertificateKind
	Position     int
	PositionText string
	OrderID      *string
}

// Generator does not check for earlier certificates; callers must run the
// existence pre-check before invoking it.
type Generator struct {
	prefix   string
	renderer Renderer
	store    interfaces.ArtifactStore
	repo     interfaces.CertificateRepository
	now      func() time.Time
}

func NewGenerator(prefix string, renderer Renderer, store interfaces.ArtifactStore, repo interfaces.CertificateRepository) *Generator {
	return &Generator{
		prefix:   prefix,
		renderer: renderer,
		store:    store,
		repo:     repo,
		now:      time.Now,
	}
}

func (g *Generator) Issue(ctx context.Context, req IssueRequest) (*models.Certificate, error) {
	ctx, span := telemetry.StartSpan(ctx, "certificate.Issue",
		attribute.String("event_id", req.Event.ID),
		attribute.String("student_id", req.Student.ID),
		attribute.String("kind", string(req.Kind)),
	)
	defer span.End()

	cert, err := g.issue(ctx, req)
	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
	}
	telemetry.CertificatesIssued.WithLabelValues(string(req.Kind), outcome).Inc()
	return cert, err
}

func (g *Generator) issue(ctx context.Context, req IssueRequest) (*models.Certificate, error) {
	if strings.TrimSpace(req.Student.ID) == "" || strings.TrimSpace(req.Event.ID) == "" {
		return nil, apperr.Validation("student and event ids are required")
	}

	doc, cert, err := g.prepare(req)
	if err != nil {
		return nil, err
	}

	rendered, err := g.renderer.Render(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("render certificate %s: %w", cert.UID, err)
	}

	url, err := g.store.Put(ctx, ArtifactKey(cert.UID, "pdf"), contentTypePDF, bytes.NewReader(rendered.PDF))
	if err != nil {
		return nil, fmt.Errorf("store certificate %s: %w", cert.UID, err)
	}
	cert.ArtifactURL = url

	if len(rendered.Markup) > 0 {
		markupURL, err := g.store.Put(ctx, ArtifactKey(cert.UID, "html"), contentTypeHTML, bytes.NewReader(rendered.Markup))
		if err != nil {
			telemetry.Logger.Warn("Failed to store certificate markup",
				zap.String("uid", cert.UID),
				zap.Error(err),
			)
		} else {
			cert.MarkupURL = markupURL
		}
	}

	if err := g.repo.Create(ctx, cert); err != nil {
		return nil, err
	}

	telemetry.Logger.Info("Certificate issued",
		zap.String("uid", cert.UID),
		zap.String("event_id", cert.EventID),
		zap.String("student_id", cert.StudentID),
	)
	return cert, nil
}

// prepare derives the UID and the template fields without touching any I/O.
func (g *Generator) prepare(req IssueRequest) (Document, *models.Certificate, error) {
	issued := g.now()
	cert := &models.Certificate{
		ID:              uuid.NewString(),
		StudentID:       req.Student.ID,
		EventID:         req.Event.ID,
		OrderID:         req.OrderID,
		Kind:            req.Kind,
		IssueDate:       issued,
		ParticipantName: req.Student.Name,
		Sport:           req.Event.Sport,
		EventName:       req.Event.Name,
	}
	doc := Document{
		Title:           "Certificate of Participation",
		ParticipantName: req.Student.Name,
		Sport:           req.Event.Sport,
		EventName:       req.Event.Name,
		IssueDate:       issued.Format(dateLayout),
	}
	if !req.Event.Date.IsZero() {
		doc.EventDate = req.Event.Date.Format(dateLayout)
	}

	var err error
	switch req.Kind {
	case models.KindStandard:
		cert.UID, err = StandardUID(g.prefix, req.Event.DisplayID, req.Student.DisplayID)
	case models.KindWinner:
		cert.UID, err = WinnerUID(g.prefix, req.Event.DisplayID, req.Student.DisplayID, req.Position)
		if err == nil {
			badge, text := PositionLabel(req.Position)
			if t := strings.TrimSpace(req.PositionText); t != "" {
				text = t
			}
			pos := req.Position
			cert.Position = &pos
			cert.PositionText = text
			doc.Title = "Certificate of Achievement"
			doc.Winner = true
			doc.PositionBadge = badge
			doc.PositionText = text
		}
	default:
		err = apperr.Validation("unknown certificate kind " + string(req.Kind))
	}
	if err != nil {
		return Document{}, nil, err
	}

	doc.UID = cert.UID
	return doc, cert, nil
}
