// Package repository holds the MySQL data access layer.  Repositories
// return the sentinel errors below (or raw driver errors); services decide
// how each one is reported to clients.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEmailExists is returned when the unique email index rejects an insert.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrListingNotFound is returned when a detail lookup matches no row.
var ErrListingNotFound = errors.New("listing not found")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
