package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These indexes enable efficient full-text search on a session's intake
// packet (resume text + job description) and its last panel snapshot.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	// GIN index for intake_data full-text search
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_sessions_intake_data_gin
		ON sessions USING gin(to_tsvector('english', intake_data))`)
	if err != nil {
		return fmt.Errorf("failed to create intake_data GIN index: %w", err)
	}

	// GIN index for last_panel_data (JSON) to support containment queries
	// from the session list view's company_name/job_title derivation.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_panel_data_gin
		ON sessions USING gin(last_panel_data)`)
	if err != nil {
		return fmt.Errorf("failed to create last_panel_data GIN index: %w", err)
	}

	return nil
}
