package db

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

// columnTypes are the dialect-specific spellings the shared DDL
// templates expand to.
type columnTypes struct {
	serialPK  string
	timestamp string
	amount    string
}

func typesFor(d string) columnTypes {
	switch d {
	case dialect.Postgres:
		return columnTypes{
			serialPK:  "BIGSERIAL PRIMARY KEY",
			timestamp: "TIMESTAMPTZ",
			amount:    "DECIMAL(20,6)",
		}
	case dialect.MySQL:
		return columnTypes{
			serialPK:  "BIGINT AUTO_INCREMENT PRIMARY KEY",
			timestamp: "DATETIME",
			amount:    "DECIMAL(20,6)",
		}
	default:
		// sqlite declares types for affinity only; TEXT keeps decimal
		// amounts exact instead of rounding them through floats.
		return columnTypes{
			serialPK:  "INTEGER PRIMARY KEY AUTOINCREMENT",
			timestamp: "TIMESTAMP",
			amount:    "TEXT",
		}
	}
}

var tableTemplates = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{serial}},
		guid VARCHAR(36) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		is_owner BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR(16) NOT NULL DEFAULT 'activated',
		attributes TEXT,
		created_at {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL,
		CONSTRAINT uq_users_guid UNIQUE (guid),
		CONSTRAINT uq_users_email UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id {{serial}},
		user_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		token VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'enabled',
		created_at {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL,
		CONSTRAINT uq_api_keys_token UNIQUE (token)
	)`,
	`CREATE TABLE IF NOT EXISTS grants (
		id {{serial}},
		subject_guid VARCHAR(36) NOT NULL,
		relation VARCHAR(64) NOT NULL,
		object_guid VARCHAR(36) NOT NULL,
		created_at {{timestamp}} NOT NULL,
		CONSTRAINT uq_grants_subject_relation_object UNIQUE (subject_guid, relation, object_guid)
	)`,
	`CREATE TABLE IF NOT EXISTS approvals (
		id {{serial}},
		guid VARCHAR(36) NOT NULL,
		requester_guid VARCHAR(36) NOT NULL,
		title VARCHAR(255) NOT NULL,
		kind VARCHAR(64) NOT NULL,
		amount {{amount}} NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		decided_by_guid VARCHAR(36),
		decision_note TEXT,
		decided_at {{timestamp}} NULL,
		created_at {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL,
		CONSTRAINT uq_approvals_guid UNIQUE (guid)
	)`,
	`CREATE TABLE IF NOT EXISTS system_settings (
		id {{serial}},
		name VARCHAR(128) NOT NULL,
		value TEXT NOT NULL,
		created_at {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL,
		CONSTRAINT uq_system_settings_name UNIQUE (name)
	)`,
}

var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_approvals_requester ON approvals (requester_guid)`,
	`CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals (status)`,
	`CREATE INDEX IF NOT EXISTS idx_approvals_decided_at ON approvals (decided_at)`,
	`CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys (user_id)`,
}

// Migrate creates missing tables and indexes. Statements are idempotent,
// so running it on every boot is safe.
func (d *DB) Migrate(ctx context.Context) error {
	types := typesFor(d.dialect)

	expand := strings.NewReplacer(
		"{{serial}}", types.serialPK,
		"{{timestamp}}", types.timestamp,
		"{{amount}}", types.amount,
	)

	for _, tmpl := range tableTemplates {
		stmt := expand.Replace(tmpl)
		if _, err := d.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate table: %w", err)
		}
	}

	for _, stmt := range indexStatements {
		if err := d.createIndex(ctx, stmt); err != nil {
			return fmt.Errorf("migrate index: %w", err)
		}
	}

	return nil
}

func (d *DB) createIndex(ctx context.Context, stmt string) error {
	// MySQL has no CREATE INDEX IF NOT EXISTS; run the bare statement
	// and swallow the duplicate error instead.
	if d.dialect == dialect.MySQL {
		_, err := d.Exec(ctx, strings.Replace(stmt, "IF NOT EXISTS ", "", 1))
		if err != nil && strings.Contains(err.Error(), "Duplicate key name") {
			return nil
		}

		return err
	}

	_, err := d.Exec(ctx, stmt)

	return err
}
