package repositories

import (
	"context"
	"errors"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrRegistrationConflict = errors.New("team already registered for this tournament")
	ErrRegistrationInvalid  = errors.New("invalid tournament or team reference")
)

type RegistrationRepository interface {
	Add(ctx context.Context, registration *models.TournamentRegistration) error
	Exists(ctx context.Context, tournamentID, teamID int) (bool, error)
	Count(ctx context.Context, tournamentID int) (int, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.TournamentRegistration, error)
}

type postgresRegistrationRepository struct {
	db SQLExecutor
}

func NewPostgresRegistrationRepository(db SQLExecutor) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) Add(ctx context.Context, reg *models.TournamentRegistration) error {
	query := `
		INSERT INTO tournament_registrations (tournament_id, team_id)
		VALUES ($1, $2)
		RETURNING registered_at`

	err := r.db.QueryRowContext(ctx, query, reg.TournamentID, reg.TeamID).Scan(&reg.RegisteredAt)

	return constraintError(err, map[string]error{
		"tournament_registrations_pkey":               ErrRegistrationConflict,
		"tournament_registrations_tournament_id_fkey": ErrRegistrationInvalid,
		"tournament_registrations_team_id_fkey":       ErrRegistrationInvalid,
	})
}

func (r *postgresRegistrationRepository) Exists(ctx context.Context, tournamentID, teamID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM tournament_registrations WHERE tournament_id = $1 AND team_id = $2
		)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, tournamentID, teamID).Scan(&exists)
	return exists, err
}

func (r *postgresRegistrationRepository) Count(ctx context.Context, tournamentID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tournament_registrations WHERE tournament_id = $1`, tournamentID,
	).Scan(&count)
	return count, err
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.TournamentRegistration, error) {
	query := `
		SELECT tournament_id, team_id, registered_at
		FROM tournament_registrations
		WHERE tournament_id = $1
		ORDER BY registered_at ASC, team_id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]models.TournamentRegistration, 0)
	for rows.Next() {
		var reg models.TournamentRegistration
		if err := rows.Scan(&reg.TournamentID, &reg.TeamID, &reg.RegisteredAt); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}
