package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type StudentRepository struct {
	db *sql.DB
}

func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) GetByID(ctx context.Context, studentID string) (*models.StudentProfile, error) {
	return r.getOne(ctx, `SELECT id, user_id, display_id, name FROM students WHERE id = $1`, studentID)
}

func (r *StudentRepository) GetByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	return r.getOne(ctx, `SELECT id, user_id, display_id, name FROM students WHERE user_id = $1`, userID)
}

func (r *StudentRepository) GetByDisplayID(ctx context.Context, displayID string) (*models.StudentProfile, error) {
	return r.getOne(ctx, `SELECT id, user_id, display_id, name FROM students WHERE display_id = $1`, displayID)
}

func (r *StudentRepository) getOne(ctx context.Context, query, arg string) (*models.StudentProfile, error) {
	var s models.StudentProfile
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&s.ID, &s.UserID, &s.DisplayID, &s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("student not found")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) ActivatePlan(ctx context.Context, a models.PlanActivation) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET plan_active = TRUE, subscription_type = $1, plan_expires_at = $2,
		    user_type = COALESCE(NULLIF($3, ''), user_type)
		WHERE id = $4
	`, a.PlanID, a.ExpiresAt, a.UserType, a.UserID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}
