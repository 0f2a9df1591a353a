package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const auditSchema = `CREATE TABLE IF NOT EXISTS console_audit_logs (
	id UUID PRIMARY KEY,
	actor_id TEXT,
	actor_email TEXT,
	actor_role TEXT,
	impersonating BOOLEAN NOT NULL DEFAULT FALSE,
	action TEXT NOT NULL,
	resource TEXT NOT NULL,
	resource_id TEXT,
	details JSONB,
	ip_address TEXT,
	user_agent TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_console_audit_logs_actor ON console_audit_logs (actor_id, created_at DESC);`

// EnsureSchema creates the tables owned by the console if they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return nil
	}
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}
