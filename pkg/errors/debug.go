package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump flattens an error chain for structured logs. Postgres fields are
// filled from either pgx or lib/pq errors found in the chain.
type ErrorDump struct {
	Message   string
	Code      Code
	Retryable bool
	Chain     []string

	PGCode       string
	PGConstraint string
	PGTable      string
	PGColumn     string
	PGDetail     string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
		d.Retryable = MetadataFor(d.Code).Retryable
	}
	for cur := err; cur != nil; cur = stdErrors.Unwrap(cur) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", cur, cur))
	}

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgErr):
		d.PGCode, d.PGConstraint, d.PGTable = pgErr.Code, pgErr.ConstraintName, pgErr.TableName
		d.PGColumn, d.PGDetail = pgErr.ColumnName, pgErr.Detail
	case stdErrors.As(err, &pqErr):
		d.PGCode, d.PGConstraint, d.PGTable = string(pqErr.Code), pqErr.Constraint, pqErr.Table
		d.PGColumn, d.PGDetail = pqErr.Column, pqErr.Detail
	}
	return d
}

// Fields returns the non-empty parts of the dump keyed for the logger.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
		fields["retryable"] = d.Retryable
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	for key, value := range map[string]string{
		"pg_code":       d.PGCode,
		"pg_constraint": d.PGConstraint,
		"pg_table":      d.PGTable,
		"pg_column":     d.PGColumn,
		"pg_detail":     d.PGDetail,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
