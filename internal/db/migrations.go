package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS licenses (
		id              BIGSERIAL PRIMARY KEY,
		dl_number       TEXT NOT NULL,
		name            TEXT,
		validity        TEXT,
		phone_number    TEXT,
		status          TEXT NOT NULL DEFAULT 'valid',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_licenses_dl_number ON licenses(dl_number);`,
	`CREATE TABLE IF NOT EXISTS registration_certificates (
		id              BIGSERIAL PRIMARY KEY,
		regn_number     TEXT NOT NULL,
		owner_name      TEXT,
		engine_number   TEXT,
		chassis_number  TEXT,
		crime_involved  TEXT,
		status          TEXT NOT NULL DEFAULT 'valid',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_rc_regn_number ON registration_certificates(regn_number);`,
	`CREATE TABLE IF NOT EXISTS transaction_logs (
		id              BIGSERIAL PRIMARY KEY,
		transaction_id  TEXT NOT NULL,
		timestamp       TIMESTAMPTZ NOT NULL,
		scanned_by      TEXT NOT NULL,
		location        TEXT NOT NULL,
		tollgate        TEXT NOT NULL,
		dl_number       TEXT,
		dl_name         TEXT,
		phone_number    TEXT,
		dl_status       TEXT,
		vehicle_number  TEXT,
		owner_name      TEXT,
		engine_number   TEXT,
		chassis_number  TEXT,
		rc_status       TEXT,
		crime_involved  TEXT,
		driver_status   TEXT,
		driver_name     TEXT,
		alert_type      TEXT,
		description     TEXT,
		suspicious      BOOLEAN NOT NULL DEFAULT false,
		raw_payload     JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_logs_dl_number ON transaction_logs(dl_number);`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_logs_timestamp ON transaction_logs(timestamp);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
