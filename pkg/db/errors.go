package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally on a specific constraint. Postgres errors are matched on their
// SQLSTATE and constraint name; sqlite (tests) falls back to the message.
// gorm.ErrDuplicatedKey carries no constraint name, so it only matches when
// constraintName is empty.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pg := pkgerrors.PostgresDiagnostics(err); pg != nil {
		return pg.UniqueViolation("") && strings.Contains(pg.Constraint, constraintName)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return constraintName == ""
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsNotFound reports whether the error is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
