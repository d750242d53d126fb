package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

const certificateColumns = `id, uid, student_id, event_id, order_id, kind, artifact_url, markup_url, issue_date,
	participant_name, sport, event_name, position, position_text`

type CertificateRepository struct {
	db *sql.DB
}

func NewCertificateRepository(db *sql.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) Create(ctx context.Context, c *models.Certificate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, c.ID, c.UID, c.StudentID, c.EventID, c.OrderID, c.Kind, c.ArtifactURL, c.MarkupURL, c.IssueDate,
		c.ParticipantName, c.Sport, c.EventName, c.Position, c.PositionText)
	if isUniqueViolation(err) {
		return apperr.ErrAlreadyIssued
	}
	return err
}

func (r *CertificateRepository) GetByUID(ctx context.Context, uid string) (*models.Certificate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE uid = $1`, uid)
	c, err := scanCertificate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("certificate not found")
	}
	return c, err
}

func (r *CertificateRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Certificate, error) {
	return r.list(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE event_id = $1 ORDER BY issue_date`, eventID)
}

func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	return r.list(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE student_id = $1 ORDER BY issue_date DESC`, studentID)
}

func (r *CertificateRepository) Exists(ctx context.Context, eventID, studentID string, kind models.CertificateKind) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM certificates WHERE event_id = $1 AND student_id = $2 AND kind = $3)
	`, eventID, studentID, kind).Scan(&exists)
	return exists, err
}

func (r *CertificateRepository) list(ctx context.Context, query, arg string) ([]models.Certificate, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []models.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certs = append(certs, *c)
	}
	return certs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		c        models.Certificate
		orderID  sql.NullString
		position sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.UID, &c.StudentID, &c.EventID, &orderID, &c.Kind, &c.ArtifactURL, &c.MarkupURL,
		&c.IssueDate, &c.ParticipantName, &c.Sport, &c.EventName, &position, &c.PositionText)
	if err != nil {
		return nil, err
	}
	c.OrderID = nullable(orderID)
	if position.Valid {
		p := int(position.Int64)
		c.Position = &p
	}
	return &c, nil
}
