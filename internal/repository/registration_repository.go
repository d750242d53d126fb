package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type RegistrationRepository struct {
	db *sql.DB
}

func NewRegistrationRepository(db *sql.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) Get(ctx context.Context, eventID, studentID string) (*models.EventRegistration, error) {
	var reg models.EventRegistration
	var category, paymentID sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, student_id, status, selected_category, payment_id, created_at
		FROM event_registrations WHERE event_id = $1 AND student_id = $2
	`, eventID, studentID).Scan(&reg.ID, &reg.EventID, &reg.StudentID, &reg.Status, &category, &paymentID, &reg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("registration not found")
	}
	if err != nil {
		return nil, err
	}
	reg.SelectedCategory = nullable(category)
	reg.PaymentID = nullable(paymentID)
	return &reg, nil
}

func (r *RegistrationRepository) ListByStatus(ctx context.Context, eventID string, statuses ...models.RegistrationStatus) ([]models.EventRegistration, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, student_id, status, selected_category, payment_id, created_at
		FROM event_registrations
		WHERE event_id = $1 AND status = ANY($2)
		ORDER BY created_at
	`, eventID, pq.Array(values))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.EventRegistration
	for rows.Next() {
		var reg models.EventRegistration
		var category, paymentID sql.NullString
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.StudentID, &reg.Status, &category, &paymentID, &reg.CreatedAt); err != nil {
			return nil, err
		}
		reg.SelectedCategory = nullable(category)
		reg.PaymentID = nullable(paymentID)
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// Approve upserts on the (event_id, student_id) unique key. xmax is zero only
// for a freshly inserted tuple, which tells us whether the row is new.
func (r *RegistrationRepository) Approve(ctx context.Context, eventID, studentID string, category *string, paymentID string) (bool, error) {
	var created bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO event_registrations (id, event_id, student_id, status, selected_category, payment_id)
		VALUES ($1, $2, $3, 'APPROVED', $4, $5)
		ON CONFLICT (event_id, student_id) DO UPDATE
		SET status = 'APPROVED',
		    selected_category = COALESCE(EXCLUDED.selected_category, event_registrations.selected_category),
		    payment_id = EXCLUDED.payment_id
		RETURNING (xmax = 0)
	`, uuid.NewString(), eventID, studentID, category, paymentID).Scan(&created)
	return created, err
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
