package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Ошибки, общие для всех репозиториев.
var (
	// ErrStaleStatus is returned by compare-and-set status updates when the
	// row no longer has the expected source status.
	ErrStaleStatus = errors.New("status was changed concurrently")
	// ErrReferenceProtected is returned when a delete is blocked by dependents.
	ErrReferenceProtected = errors.New("row is referenced by protected dependents")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// constraintError translates a PostgreSQL constraint violation into the
// sentinel registered for its constraint name. Unknown errors pass through.
func constraintError(err error, byConstraint map[string]error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation, pqForeignKeyViolation, pqCheckViolation:
		if mapped, ok := byConstraint[pqErr.Constraint]; ok {
			return mapped
		}
	}
	return err
}
