package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/Kardex-api/internal/domain"
)

// Códigos SQLSTATE relevantes para el kardex.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// mapTxError traduce los fallos de bloqueo/serialización de PostgreSQL a
// domain.ErrConcurrencyConflict para que el registrador reintente.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	switch pgCode(err) {
	case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case codeCheckViolation:
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return err
}
