package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-only view of an error chain. It never reaches a
// response body.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	HTTPStatus int    `json:"http_status,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PG *PGDiagnostics `json:"pg,omitempty"`
}

// PGDiagnostics is what Postgres reported when it rejected a statement.
type PGDiagnostics struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Transient reports whether the statement may succeed when retried:
// serialization failures, deadlocks and dropped connections.
func (d *PGDiagnostics) Transient() bool {
	if d == nil {
		return false
	}
	switch d.Code {
	case "40001", "40P01":
		return true
	}
	return strings.HasPrefix(d.Code, "08")
}

// UniqueViolation reports a 23505 on the named constraint, or on any
// constraint when name is empty.
func (d *PGDiagnostics) UniqueViolation(name string) bool {
	if d == nil || d.Code != "23505" {
		return false
	}
	return name == "" || d.Constraint == name
}

// PostgresDiagnostics extracts Postgres details from either driver found in
// the chain: pgx behind gorm's postgres dialector, lib/pq behind goose.
func PostgresDiagnostics(err error) *PGDiagnostics {
	if err == nil {
		return nil
	}
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGDiagnostics{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Detail:     pgxErr.Detail,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGDiagnostics{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
		}
	}
	return nil
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.HTTPStatus = MetadataFor(te.Code()).HTTPStatus
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.PG = PostgresDiagnostics(err)
	return d
}
