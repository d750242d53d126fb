package certificate

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

// Document carries the already-formatted fields substituted into a template.
type Document struct {
	UID             string
	Title           string
	Winner          bool
	ParticipantName string
	Sport           string
	EventName       string
	EventDate       string
	IssueDate       string
	PositionBadge   string
	PositionText    string
}

type Rendered struct {
	PDF    []byte
	Markup []byte
}

type Renderer interface {
	Render(ctx context.Context, doc Document) (*Rendered, error)
}

// DocumentRenderer builds a fresh PDF engine for every document and also
// produces the HTML markup used for fallback viewing.
type DocumentRenderer struct{}

func NewDocumentRenderer() *DocumentRenderer {
	return &DocumentRenderer{}
}

func (r *DocumentRenderer) Render(ctx context.Context, doc Document) (*Rendered, error) {
	var markup bytes.Buffer
	if err := markupTemplate.Execute(&markup, doc); err != nil {
		return nil, fmt.Errorf("render markup: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf, err := renderPDF(doc)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return &Rendered{PDF: pdf, Markup: markup.Bytes()}, nil
}

func renderPDF(doc Document) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.Title+" - "+doc.ParticipantName, true)
	pdf.AddPage()

	w, h := pdf.GetPageSize()
	pdf.SetDrawColor(31, 58, 95)
	pdf.SetLineWidth(2)
	pdf.Rect(10, 10, w-20, h-20, "D")

	pdf.SetY(35)
	pdf.SetTextColor(31, 58, 95)
	pdf.SetFont("Times", "B", 36)
	pdf.CellFormat(0, 18, tr(doc.Title), "", 1, "C", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Times", "", 16)
	pdf.CellFormat(0, 14, "This is to certify that", "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "B", 30)
	pdf.CellFormat(0, 20, tr(doc.ParticipantName), "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "", 16)
	if doc.Winner {
		pdf.CellFormat(0, 12, tr("secured "+doc.PositionText+" in"), "", 1, "C", false, 0, "")
		if doc.PositionBadge != "" {
			pdf.SetFont("Helvetica", "B", 14)
			pdf.SetTextColor(201, 162, 39)
			pdf.CellFormat(0, 10, doc.PositionBadge, "", 1, "C", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}
	} else {
		pdf.CellFormat(0, 12, "has successfully participated in", "", 1, "C", false, 0, "")
	}

	pdf.SetFont("Times", "B", 22)
	pdf.CellFormat(0, 16, tr(doc.EventName), "", 1, "C", false, 0, "")
	pdf.SetFont("Times", "", 14)
	pdf.CellFormat(0, 10, tr(doc.Sport+" - "+doc.EventDate), "", 1, "C", false, 0, "")

	pdf.SetY(h - 35)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(85, 85, 85)
	pdf.CellFormat(0, 6, "Certificate ID: "+doc.UID, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Issued on "+doc.IssueDate, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PooledRenderer bounds how many documents render at once and gives each
// render its own deadline. A slot is held until the underlying render
// returns, even if the caller has already given up on it.
type PooledRenderer struct {
	inner   Renderer
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewPooledRenderer(inner Renderer, size int, timeout time.Duration) *PooledRenderer {
	if size <= 0 {
		size = 1
	}
	return &PooledRenderer{inner: inner, sem: semaphore.NewWeighted(int64(size)), timeout: timeout}
}

type renderOutcome struct {
	rendered *Rendered
	err      error
}

func (p *PooledRenderer) Render(ctx context.Context, doc Document) (*Rendered, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for renderer: %w", err)
	}

	done := make(chan renderOutcome, 1)
	start := time.Now()
	telemetry.RendersInFlight.Inc()
	go func() {
		defer p.sem.Release(1)
		defer telemetry.RendersInFlight.Dec()
		r, err := p.inner.Render(ctx, doc)
		telemetry.RenderDuration.Observe(time.Since(start).Seconds())
		done <- renderOutcome{rendered: r, err: err}
	}()

	select {
	case out := <-done:
		return out.rendered, out.err
	case <-ctx.Done():
		telemetry.Logger.Warn("Certificate render timed out", zap.String("uid", doc.UID))
		return nil, fmt.Errorf("render %s: %w", doc.UID, ctx.Err())
	}
}
