package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrMembershipNotFound      = errors.New("team membership not found")
	ErrMembershipConflict      = errors.New("team membership already exists")
	ErrMembershipPlayerInvalid = errors.New("team member must be a player profile")
	ErrMembershipTeamInvalid   = errors.New("invalid team reference")
)

type RosterRepository interface {
	Add(ctx context.Context, membership *models.TeamMembership) error
	Get(ctx context.Context, teamID, playerID int) (*models.TeamMembership, error)
	// Reactivate flips an inactive membership back to active with a new role.
	Reactivate(ctx context.Context, teamID, playerID int, role models.RoleInTeam) error
	Deactivate(ctx context.Context, teamID, playerID int) error
	ListByTeam(ctx context.Context, teamID int, includeInactive bool) ([]models.TeamMembership, error)
}

type postgresRosterRepository struct {
	db SQLExecutor
}

func NewPostgresRosterRepository(db SQLExecutor) RosterRepository {
	return &postgresRosterRepository{db: db}
}

func (r *postgresRosterRepository) Add(ctx context.Context, m *models.TeamMembership) error {
	query := `
		INSERT INTO team_memberships (team_id, player_id, role_in_team, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING active, joined_at`

	err := r.db.QueryRowContext(ctx, query, m.TeamID, m.PlayerID, m.RoleInTeam).Scan(&m.Active, &m.JoinedAt)

	return constraintError(err, map[string]error{
		"team_memberships_team_player_key": ErrMembershipConflict,
		"team_memberships_player_fkey":     ErrMembershipPlayerInvalid,
		"team_memberships_team_id_fkey":    ErrMembershipTeamInvalid,
	})
}

func (r *postgresRosterRepository) Get(ctx context.Context, teamID, playerID int) (*models.TeamMembership, error) {
	query := `
		SELECT team_id, player_id, role_in_team, active, joined_at
		FROM team_memberships
		WHERE team_id = $1 AND player_id = $2`

	m := &models.TeamMembership{}
	err := r.db.QueryRowContext(ctx, query, teamID, playerID).Scan(
		&m.TeamID, &m.PlayerID, &m.RoleInTeam, &m.Active, &m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresRosterRepository) Reactivate(ctx context.Context, teamID, playerID int, role models.RoleInTeam) error {
	query := `
		UPDATE team_memberships
		SET active = TRUE, role_in_team = $1, joined_at = NOW()
		WHERE team_id = $2 AND player_id = $3 AND active = FALSE`

	result, err := r.db.ExecContext(ctx, query, role, teamID, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMembershipConflict)
}

func (r *postgresRosterRepository) Deactivate(ctx context.Context, teamID, playerID int) error {
	query := `UPDATE team_memberships SET active = FALSE WHERE team_id = $1 AND player_id = $2`

	result, err := r.db.ExecContext(ctx, query, teamID, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresRosterRepository) ListByTeam(ctx context.Context, teamID int, includeInactive bool) ([]models.TeamMembership, error) {
	query := `
		SELECT team_id, player_id, role_in_team, active, joined_at
		FROM team_memberships
		WHERE team_id = $1 AND (active OR $2)
		ORDER BY joined_at ASC, player_id ASC`

	rows, err := r.db.QueryContext(ctx, query, teamID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]models.TeamMembership, 0)
	for rows.Next() {
		var m models.TeamMembership
		if err := rows.Scan(&m.TeamID, &m.PlayerID, &m.RoleInTeam, &m.Active, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}
