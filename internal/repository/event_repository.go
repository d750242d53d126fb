package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByID(ctx context.Context, eventID string) (*models.Event, error) {
	var e models.Event
	err := r.db.QueryRowContext(ctx, `
		SELECT id, display_id, name, sport, event_date, coordinator_id, fee_mode, event_fee, coordinator_fee,
		       created_by_admin, student_fee_enabled, student_fee_amount, student_fee_unit, participant_count
		FROM events WHERE id = $1
	`, eventID).Scan(&e.ID, &e.DisplayID, &e.Name, &e.Sport, &e.Date, &e.CoordinatorID, &e.FeeMode, &e.EventFee,
		&e.CoordinatorFee, &e.CreatedByAdmin, &e.StudentFeeEnabled, &e.StudentFeeAmount, &e.StudentFeeUnit,
		&e.ParticipantCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("event not found")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EventRepository) IncrementParticipants(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET participant_count = participant_count + 1 WHERE id = $1`, eventID)
	return err
}

func (r *EventRepository) HasPermission(ctx context.Context, userID, eventID, permission string) (bool, error) {
	var allowed bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM events WHERE id = $1 AND coordinator_id = $2)
		    OR EXISTS (SELECT 1 FROM event_permissions WHERE event_id = $1 AND user_id = $2 AND permission = $3)
	`, eventID, userID, permission).Scan(&allowed)
	return allowed, err
}
