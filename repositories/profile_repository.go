package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrProfileNotFound     = errors.New("role profile not found")
	ErrProfileConflict     = errors.New("role profile already exists")
	ErrProfileRoleMismatch = errors.New("role profile does not match identity role")
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *models.RoleProfile) error
	GetByIdentityID(ctx context.Context, identityID int) (*models.RoleProfile, error)
}

type postgresProfileRepository struct {
	db SQLExecutor
}

func NewPostgresProfileRepository(db SQLExecutor) ProfileRepository {
	return &postgresProfileRepository{db: db}
}

// profileRow is the flattened storage shape of the profile variants.
type profileRow struct {
	skillLevel       sql.NullString
	ranking          sql.NullInt64
	organizationName sql.NullString
	description      sql.NullString
	accessLevel      sql.NullString
	certification    sql.NullString
}

func (r *postgresProfileRepository) Create(ctx context.Context, profile *models.RoleProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrProfileRoleMismatch, err)
	}

	var row profileRow
	switch {
	case profile.Player != nil:
		row.skillLevel = sql.NullString{String: string(profile.Player.SkillLevel), Valid: true}
		if profile.Player.Ranking != nil {
			row.ranking = sql.NullInt64{Int64: int64(*profile.Player.Ranking), Valid: true}
		}
	case profile.Organizer != nil:
		row.organizationName = sql.NullString{String: profile.Organizer.OrganizationName, Valid: true}
		row.description = sql.NullString{String: profile.Organizer.Description, Valid: profile.Organizer.Description != ""}
	case profile.Administrator != nil:
		row.accessLevel = sql.NullString{String: profile.Administrator.AccessLevel, Valid: true}
	case profile.Referee != nil:
		row.certification = sql.NullString{String: profile.Referee.Certification, Valid: true}
	}

	query := `
		INSERT INTO role_profiles (identity_id, role, skill_level, ranking, organization_name, description, access_level, certification)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		profile.IdentityID,
		profile.Role,
		row.skillLevel,
		row.ranking,
		row.organizationName,
		row.description,
		row.accessLevel,
		row.certification,
	).Scan(&profile.CreatedAt)

	return constraintError(err, map[string]error{
		"role_profiles_pkey":              ErrProfileConflict,
		"role_profiles_role_identity_key": ErrProfileConflict,
		"role_profiles_identity_fkey":     ErrProfileRoleMismatch,
	})
}

func (r *postgresProfileRepository) GetByIdentityID(ctx context.Context, identityID int) (*models.RoleProfile, error) {
	query := `
		SELECT identity_id, role, skill_level, ranking, organization_name, description, access_level, certification, created_at
		FROM role_profiles
		WHERE identity_id = $1`

	profile := &models.RoleProfile{}
	var row profileRow
	err := r.db.QueryRowContext(ctx, query, identityID).Scan(
		&profile.IdentityID,
		&profile.Role,
		&row.skillLevel,
		&row.ranking,
		&row.organizationName,
		&row.description,
		&row.accessLevel,
		&row.certification,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	switch profile.Role {
	case models.RolePlayer:
		profile.Player = &models.PlayerProfile{SkillLevel: models.SkillLevel(row.skillLevel.String)}
		if row.ranking.Valid {
			ranking := int(row.ranking.Int64)
			profile.Player.Ranking = &ranking
		}
	case models.RoleOrganizer:
		profile.Organizer = &models.OrganizerProfile{
			OrganizationName: row.organizationName.String,
			Description:      row.description.String,
		}
	case models.RoleAdministrator:
		profile.Administrator = &models.AdministratorProfile{AccessLevel: row.accessLevel.String}
	case models.RoleReferee:
		profile.Referee = &models.RefereeProfile{Certification: row.certification.String}
	default:
		return nil, fmt.Errorf("unknown profile role %q for identity %d", profile.Role, identityID)
	}
	return profile, nil
}
