package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// ApplySQLiteSchema creates the tables used by the SQLite dialect. It is
// idempotent. Statements are executed one at a time because not every
// SQLite driver accepts multi-statement Exec.
func ApplySQLiteSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
