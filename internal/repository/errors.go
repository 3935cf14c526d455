// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish a missing row from a unique-key collision without knowing
// which driver produced the error.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, e.g. a
// second order for the same reservation. The service layer translates it
// into a conflict.
var ErrDuplicate = errors.New("duplicate key")

// mysqlDuplicateEntry is the MySQL server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// translate maps driver specific unique violations to ErrDuplicate and
// leaves every other error untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return errors.Join(ErrDuplicate, err)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
