// pkg/connector/errors.go
package connector

import (
	"errors"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

// SQLState extracts the PostgreSQL SQLSTATE code from a driver error.
// Returns "" for errors that did not come from a PostgreSQL server.
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

// IsTransient reports whether rerunning the whole operation may succeed:
// connection exceptions (class 08), serialization failures and deadlocks,
// and admin shutdowns. Constraint violations and syntax errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch state := SQLState(err); {
	case strings.HasPrefix(state, "08"):
		return true
	case state == "40001", state == "40P01":
		return true
	case state == "57P01", state == "57P02", state == "57P03":
		return true
	case state != "":
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "database is locked")
}
