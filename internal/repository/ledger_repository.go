package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type EventPaymentRepository struct {
	db *sql.DB
}

func NewEventPaymentRepository(db *sql.DB) *EventPaymentRepository {
	return &EventPaymentRepository{db: db}
}

func (r *EventPaymentRepository) RecordSuccess(ctx context.Context, ep *models.EventPayment) (bool, error) {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO event_payments (id, event_id, gateway_order_id, gateway_payment_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'SUCCESS')
		ON CONFLICT (event_id, gateway_order_id) DO NOTHING
	`, ep.ID, ep.EventID, ep.GatewayOrderID, ep.GatewayPaymentID, ep.Amount, ep.Currency)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *EventPaymentRepository) HasSuccess(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_payments WHERE event_id = $1 AND status = 'SUCCESS')`,
		eventID).Scan(&exists)
	return exists, err
}

// OrderAggregateRepository reads the legacy orders table kept for events paid
// before per-event ledger rows existed.
type OrderAggregateRepository struct {
	db *sql.DB
}

func NewOrderAggregateRepository(db *sql.DB) *OrderAggregateRepository {
	return &OrderAggregateRepository{db: db}
}

func (r *OrderAggregateRepository) HasPaidOrder(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE event_id = $1 AND UPPER(status) IN ('PAID', 'SUCCESS'))`,
		eventID).Scan(&exists)
	return exists, err
}
