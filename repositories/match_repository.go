package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchSameTeam          = errors.New("match teams must differ")
	ErrMatchTeamNotRegistered = errors.New("match team is not registered in the tournament")
	ErrMatchRefereeInvalid    = errors.New("match referee must be a referee profile")
)

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Match, error)
	UpdateStatus(ctx context.Context, id int, from, to models.MatchStatus) error
	UpdateSchedule(ctx context.Context, id int, scheduledAt time.Time) error
	UpdateScore(ctx context.Context, id int, score1, score2 int) error
	SetReferee(ctx context.Context, id int, refereeID int) error
}

type postgresMatchRepository struct {
	db SQLExecutor
}

func NewPostgresMatchRepository(db SQLExecutor) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `
	id, tournament_id, name, scheduled_at, duration_minutes, venue,
	team1_id, team2_id, score1, score2, status, referee_id, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches (
			tournament_id, name, scheduled_at, duration_minutes, venue, team1_id, team2_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		m.TournamentID, m.Name, m.ScheduledAt, m.DurationMinutes, m.Venue, m.Team1ID, m.Team2ID, m.Status,
	).Scan(&m.ID, &m.CreatedAt)

	return constraintError(err, map[string]error{
		"matches_distinct_teams_check":    ErrMatchSameTeam,
		"matches_team1_registration_fkey": ErrMatchTeamNotRegistered,
		"matches_team2_registration_fkey": ErrMatchTeamNotRegistered,
		"matches_tournament_id_fkey":      ErrTournamentNotFound,
	})
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return scanMatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return scanMatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 ORDER BY scheduled_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, id int, from, to models.MatchStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrStaleStatus)
}

func (r *postgresMatchRepository) UpdateSchedule(ctx context.Context, id int, scheduledAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE matches SET scheduled_at = $1 WHERE id = $2`, scheduledAt, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateScore(ctx context.Context, id int, score1, score2 int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET score1 = $1, score2 = $2 WHERE id = $3`, score1, score2, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetReferee(ctx context.Context, id int, refereeID int) error {
	query := `UPDATE matches SET referee_id = $1, referee_role = 'referee' WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, refereeID, id)
	if err != nil {
		return constraintError(err, map[string]error{
			"matches_referee_fkey": ErrMatchRefereeInvalid,
		})
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func scanMatch(row rowScanner) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.Name, &m.ScheduledAt, &m.DurationMinutes, &m.Venue,
		&m.Team1ID, &m.Team2ID, &m.Score1, &m.Score2, &m.Status, &m.RefereeID, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}
