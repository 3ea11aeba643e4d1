package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Repositories bundles every repository bound to one unit of work.
type Repositories struct {
	Identities    IdentityRepository
	Profiles      ProfileRepository
	Teams         TeamRepository
	Rosters       RosterRepository
	Tournaments   TournamentRepository
	Registrations RegistrationRepository
	Matches       MatchRepository
	Payments      PaymentRepository
}

// TxFunc is the body of a unit of work. Returning an error discards every
// change made through repos.
type TxFunc func(ctx context.Context, repos Repositories) error

// Store runs units of work. Implementations guarantee that either all writes
// made by fn become visible or none do.
type Store interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

func NewPostgresRepositories(exec SQLExecutor) Repositories {
	return Repositories{
		Identities:    NewPostgresIdentityRepository(exec),
		Profiles:      NewPostgresProfileRepository(exec),
		Teams:         NewPostgresTeamRepository(exec),
		Rosters:       NewPostgresRosterRepository(exec),
		Tournaments:   NewPostgresTournamentRepository(exec),
		Registrations: NewPostgresRegistrationRepository(exec),
		Matches:       NewPostgresMatchRepository(exec),
		Payments:      NewPostgresPaymentRepository(exec),
	}
}

type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn TxFunc) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("transaction rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	txErr = fn(ctx, NewPostgresRepositories(tx))
	return txErr
}
