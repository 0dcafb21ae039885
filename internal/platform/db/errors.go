package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	numericOutOfRange   = "22003"
)

// MapErr translates driver errors into the application taxonomy.
func MapErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return apperr.Conflict(entity + " already exists")
	case foreignKeyViolation:
		return apperr.Validation(entity, "references a record that does not exist")
	case numericOutOfRange:
		return apperr.Validation(entity, "numeric value out of range")
	}
	return err
}
