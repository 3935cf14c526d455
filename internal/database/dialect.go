package database

import "fmt"

// Dialect identifies the SQL flavour behind a *sql.DB. Repositories use it
// for the few statements that differ between MySQL and SQLite.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// ParseDialect maps a DB_DRIVER value to a Dialect. Empty means MySQL.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "", "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// ForUpdate returns the row-lock suffix for SELECT statements. SQLite has
// no row locks; its writers are serialized by the single connection and
// the version guard on seat status updates.
func (d Dialect) ForUpdate() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}
