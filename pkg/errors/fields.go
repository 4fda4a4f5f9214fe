package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err for structured logging: the typed code, every link
// of the wrap chain and, for Postgres failures, the SQLSTATE and constraint.
// Both pgx and lib/pq errors are recognised.
func LogFields(err error) map[string]any {
	fields := map[string]any{}
	if err == nil {
		return fields
	}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields["error_chain"] = chain

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		addPG(fields, pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail)
	case stdErrors.As(err, &pqErr):
		addPG(fields, string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail)
	}
	return fields
}

func addPG(fields map[string]any, code, constraint, table, detail string) {
	fields["pg_code"] = code
	if constraint != "" {
		fields["pg_constraint"] = constraint
	}
	if table != "" {
		fields["pg_table"] = table
	}
	if detail != "" {
		fields["pg_detail"] = detail
	}
}
