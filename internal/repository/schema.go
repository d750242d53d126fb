package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// InitDB creates the tables this service writes to, plus minimal versions of
// the collaborator tables it reads so a fresh database can run the pipeline.
func InitDB(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id VARCHAR(64) PRIMARY KEY,
			display_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			sport VARCHAR(128) NOT NULL DEFAULT '',
			event_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			coordinator_id VARCHAR(64) NOT NULL DEFAULT '',
			fee_mode VARCHAR(16) NOT NULL DEFAULT 'GLOBAL',
			event_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
			coordinator_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_by_admin BOOLEAN NOT NULL DEFAULT FALSE,
			student_fee_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			student_fee_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			student_fee_unit VARCHAR(32) NOT NULL DEFAULT '',
			participant_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS event_permissions (
			event_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(64) NOT NULL,
			permission VARCHAR(64) NOT NULL,
			PRIMARY KEY (event_id, user_id, permission)
		)`,
		`CREATE TABLE IF NOT EXISTS students (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL UNIQUE,
			display_id VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			plan_active BOOLEAN NOT NULL DEFAULT FALSE,
			subscription_type VARCHAR(32),
			user_type VARCHAR(32),
			plan_expires_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS event_registrations (
			id VARCHAR(64) PRIMARY KEY,
			event_id VARCHAR(64) NOT NULL,
			student_id VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'REGISTERED',
			selected_category VARCHAR(128),
			payment_id VARCHAR(64),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (event_id, student_id)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(64) PRIMARY KEY,
			event_id VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			type VARCHAR(32) NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			currency VARCHAR(8) NOT NULL,
			receipt VARCHAR(40) NOT NULL,
			gateway_order_id VARCHAR(64) UNIQUE,
			gateway_payment_id VARCHAR(64),
			status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
			metadata JSONB NOT NULL DEFAULT '{}',
			failure_details TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_event ON payments ((metadata->>'event_id')) WHERE status = 'SUCCESS'`,
		`CREATE TABLE IF NOT EXISTS event_payments (
			id VARCHAR(64) PRIMARY KEY,
			event_id VARCHAR(64) NOT NULL,
			gateway_order_id VARCHAR(64) NOT NULL,
			gateway_payment_id VARCHAR(64) NOT NULL,
			amount BIGINT NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (event_id, gateway_order_id)
		)`,
		`CREATE TABLE IF NOT EXISTS certificates (
			id VARCHAR(64) PRIMARY KEY,
			uid VARCHAR(255) NOT NULL UNIQUE,
			student_id VARCHAR(64) NOT NULL,
			event_id VARCHAR(64) NOT NULL,
			order_id VARCHAR(64),
			kind VARCHAR(16) NOT NULL,
			artifact_url TEXT NOT NULL,
			markup_url TEXT NOT NULL DEFAULT '',
			issue_date TIMESTAMP NOT NULL,
			participant_name VARCHAR(255) NOT NULL,
			sport VARCHAR(128) NOT NULL DEFAULT '',
			event_name VARCHAR(255) NOT NULL,
			position INTEGER,
			position_text VARCHAR(64) NOT NULL DEFAULT '',
			UNIQUE (event_id, student_id, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_student ON certificates(student_id)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
