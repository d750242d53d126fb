// Package gateway talks to the external payment provider's REST API and checks
// the signatures it attaches to payment confirmations.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/interfaces"
	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

// MaxReceiptLength is the longest receipt string the gateway accepts.
const MaxReceiptLength = 40

type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: timeout},
	}
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type paymentResponse struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*interfaces.GatewayOrder, error) {
	if amount <= 0 {
		return nil, apperr.Validation("order amount must be greater than zero")
	}
	var out orderResponse
	err := c.do(ctx, http.MethodPost, "/v1/orders", orderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  Receipt(receipt, time.Time{}),
		Notes:    notes,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &interfaces.GatewayOrder{ID: out.ID, Amount: out.Amount, Currency: out.Currency, Receipt: out.Receipt, Status: out.Status}, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (*interfaces.GatewayOrder, error) {
	var out orderResponse
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &out); err != nil {
		return nil, err
	}
	return &interfaces.GatewayOrder{ID: out.ID, Amount: out.Amount, Currency: out.Currency, Receipt: out.Receipt, Status: out.Status}, nil
}

func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]interfaces.GatewayPayment, error) {
	var out struct {
		Items []paymentResponse `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID+"/payments", nil, &out); err != nil {
		return nil, err
	}
	payments := make([]interfaces.GatewayPayment, 0, len(out.Items))
	for _, p := range out.Items {
		payments = append(payments, interfaces.GatewayPayment{ID: p.ID, OrderID: p.OrderID, Status: p.Status, Amount: p.Amount})
	}
	return payments, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.Logger.Warn("Payment gateway unreachable",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return apperr.Wrap(apperr.KindUnavailable, "payment gateway unreachable, please retry", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "payment gateway response unreadable, please retry", err)
	}

	if resp.StatusCode >= 500 {
		return apperr.Wrap(apperr.KindUnavailable, "payment gateway unavailable, please retry",
			fmt.Errorf("gateway status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		if resp.StatusCode == http.StatusNotFound {
			return apperr.NotFound("gateway order not found")
		}
		msg := e.Error.Description
		if msg == "" {
			msg = "payment gateway rejected the request"
		}
		return apperr.Wrap(apperr.KindValidation, msg, errors.New("gateway status "+strconv.Itoa(resp.StatusCode)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

// Receipt builds a human-readable receipt reference from the payer id and a
// timestamp, cut to the gateway's length limit. A zero time leaves ref as is
// apart from truncation.
func Receipt(ref string, at time.Time) string {
	r := ref
	if !at.IsZero() {
		r = fmt.Sprintf("rcpt_%s_%d", ref, at.Unix())
	}
	if len(r) <= MaxReceiptLength {
		return r
	}
	if at.IsZero() {
		return r[:MaxReceiptLength]
	}
	// Keep the timestamp suffix, shorten the payer part.
	suffix := "_" + strconv.FormatInt(at.Unix(), 10)
	prefix := "rcpt_" + ref
	return prefix[:MaxReceiptLength-len(suffix)] + suffix
}
