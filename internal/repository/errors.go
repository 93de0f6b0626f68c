// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// services and handlers to distinguish between failure scenarios without
// inspecting driver errors.  ErrForbidden signals an ownership violation,
// ErrNotFound a missing row, and ErrConflict a write that lost against
// concurrent or dependent state (duplicate key, deadlock, lock timeout,
// or a foreign key still referencing the row).
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.  Handlers translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be applied because of
// conflicting state.  Handlers translate this into 409.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// MySQL server error numbers that indicate a write conflict.
const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	mysqlRowIsReferenced  = 1451
	mysqlRowIsReferenced2 = 1217
)

// IsConflict reports whether err is a MySQL error caused by a concurrent
// or dependent write, or already wraps ErrConflict.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry, mysqlLockWaitTimeout, mysqlDeadlock, mysqlRowIsReferenced, mysqlRowIsReferenced2:
			return true
		}
	}
	return false
}

// isDuplicate reports whether err is a unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
