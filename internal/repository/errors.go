// Package repository defines the MySQL data access layer and the error
// values shared by its repositories.  Higher layers compare against these
// sentinels with errors.Is to tell a missing row from a duplicate insert
// from a transport failure.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key.  The
// role synchronization protocol treats it as "another caller got there
// first" and falls back to an upsert.
var ErrDuplicate = errors.New("duplicate key")

// ErrConflictKey is returned by Upsert when asked to resolve conflicts on
// a column that carries no unique index.
var ErrConflictKey = errors.New("unsupported conflict key")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is the server error number for a unique violation.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate-entry error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}
