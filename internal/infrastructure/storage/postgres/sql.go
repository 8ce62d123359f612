package postgres

import (
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"prodledger/internal/core/types"
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Builder returns a squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// IsUniqueViolation reports a 23505 error. A non-empty constraint must match
// the violated constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation reports a 23503 error.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// DayValue binds a Day to a DATE column. The text cast keeps pgx from
// choosing a binary date encoding for the string value.
func DayValue(d types.Day) squirrel.Sqlizer {
	return squirrel.Expr("?::text::date", d.String())
}

// DayCompare builds "col op day" against a DATE column. op is one of
// =, <, <=, >, >=.
func DayCompare(col, op string, d types.Day) squirrel.Sqlizer {
	return squirrel.Expr(col+" "+op+" ?::text::date", d.String())
}

// DayColumn selects a DATE column back as YYYY-MM-DD text under its own name.
func DayColumn(col string) string {
	return "to_char(" + col + ", 'YYYY-MM-DD') AS " + col
}

// QualifiedDayColumn is DayColumn for a column of an aliased table.
func QualifiedDayColumn(alias, col string) string {
	return "to_char(" + alias + "." + col + ", 'YYYY-MM-DD') AS " + col
}
