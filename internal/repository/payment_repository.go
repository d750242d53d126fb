package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	meta, err := models.MarshalContext(p.Context)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, type, amount, currency, receipt, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.UserID, p.Type, p.Amount, p.Currency, p.Receipt, p.Status, meta)
	return err
}

func (r *PaymentRepository) AttachOrder(ctx context.Context, paymentID, gatewayOrderID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments SET gateway_order_id = $1, updated_at = NOW()
		WHERE id = $2
	`, gatewayOrderID, paymentID)
	return err
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, paymentID, details string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = 'FAILED', failure_details = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'PENDING'
	`, details, paymentID)
	return err
}

func (r *PaymentRepository) MarkSuccess(ctx context.Context, gatewayOrderID, payerID, gatewayPaymentID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = 'SUCCESS', gateway_payment_id = $1, updated_at = NOW()
		WHERE gateway_order_id = $2 AND user_id = $3 AND status <> 'SUCCESS'
	`, gatewayPaymentID, gatewayOrderID, payerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PaymentRepository) MarkAttempt(ctx context.Context, gatewayOrderID, payerID string, status models.PaymentStatus, details string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, failure_details = $2, updated_at = NOW()
		WHERE gateway_order_id = $3 AND user_id = $4 AND status <> 'SUCCESS'
	`, status, details, gatewayOrderID, payerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	var (
		p         models.Payment
		orderID   sql.NullString
		paymentID sql.NullString
		meta      []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, amount, currency, receipt, gateway_order_id, gateway_payment_id,
		       status, metadata, failure_details, created_at, updated_at
		FROM payments WHERE gateway_order_id = $1
	`, gatewayOrderID).Scan(&p.ID, &p.UserID, &p.Type, &p.Amount, &p.Currency, &p.Receipt, &orderID, &paymentID,
		&p.Status, &meta, &p.FailureDetails, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	p.GatewayOrderID = orderID.String
	if paymentID.Valid {
		p.GatewayPaymentID = &paymentID.String
	}
	if p.Context, err = models.UnmarshalContext(p.Type, meta); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) HasSuccessForEvent(ctx context.Context, payerID, eventID string, t models.PaymentType) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE user_id = $1 AND type = $2 AND status = 'SUCCESS' AND metadata->>'event_id' = $3
		)
	`, payerID, t, eventID).Scan(&exists)
	return exists, err
}

func (r *PaymentRepository) HasAnySuccessForEvent(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE status = 'SUCCESS' AND type = $1 AND metadata->>'event_id' = $2
		)
	`, models.TypeEventFee, eventID).Scan(&exists)
	return exists, err
}
