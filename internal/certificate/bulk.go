package certificate

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

type Issuer interface {
	Issue(ctx context.Context, req IssueRequest) (*models.Certificate, error)
}

// ItemError records why one student's certificate could not be issued.
type ItemError struct {
	StudentID string `json:"studentId"`
	DisplayID string `json:"displayId,omitempty"`
	Error     string `json:"error"`
}

type BulkResult struct {
	Results []models.Certificate `json:"certificates"`
	Errors  []ItemError          `json:"errors"`
}

func (r BulkResult) Issued() int { return len(r.Results) }
func (r BulkResult) Failed() int { return len(r.Errors) }

// Coordinator fans issuance out over a fixed number of workers. A failing
// item never stops the others.
type Coordinator struct {
	issuer      Issuer
	workers     int
	itemTimeout time.Duration
}

func NewCoordinator(issuer Issuer, workers int, itemTimeout time.Duration) *Coordinator {
	if workers <= 0 {
		workers = 1
	}
	return &Coordinator{issuer: issuer, workers: workers, itemTimeout: itemTimeout}
}

type itemOutcome struct {
	cert *models.Certificate
	err  error
}

// IssueMany returns successes and failures in input order.
func (c *Coordinator) IssueMany(ctx context.Context, items []IssueRequest) BulkResult {
	ctx, span := telemetry.StartSpan(ctx, "certificate.IssueMany", attribute.Int("items", len(items)))
	defer span.End()

	outcomes := make([]itemOutcome, len(items))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			outcomes[i] = c.issueOne(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	result := BulkResult{Results: []models.Certificate{}, Errors: []ItemError{}}
	for i, out := range outcomes {
		if out.err != nil {
			telemetry.Logger.Warn("Certificate issuance failed",
				zap.String("event_id", items[i].Event.ID),
				zap.String("student_id", items[i].Student.ID),
				zap.Error(out.err),
			)
			result.Errors = append(result.Errors, ItemError{
				StudentID: items[i].Student.ID,
				DisplayID: items[i].Student.DisplayID,
				Error:     itemMessage(out.err),
			})
			continue
		}
		result.Results = append(result.Results, *out.cert)
	}
	return result
}

func (c *Coordinator) issueOne(ctx context.Context, item IssueRequest) (out itemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = itemOutcome{err: apperr.New(apperr.KindInternal, "certificate generation crashed")}
		}
	}()

	if c.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.itemTimeout)
		defer cancel()
	}
	cert, err := c.issuer.Issue(ctx, item)
	return itemOutcome{cert: cert, err: err}
}

// itemMessage keeps validation detail for the caller but hides infrastructure errors.
func itemMessage(err error) string {
	if apperr.KindOf(err) != apperr.KindInternal {
		return apperr.Message(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "certificate generation timed out"
	}
	return "certificate generation failed"
}
