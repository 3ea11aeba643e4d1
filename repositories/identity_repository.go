package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/tournament-core/models"
)

var (
	ErrIdentityNotFound            = errors.New("identity not found")
	ErrIdentityEmailConflict       = errors.New("identity email conflict")
	ErrIdentityExternalRefConflict = errors.New("identity external reference conflict")
	ErrExternalRefAlreadySet       = errors.New("identity external reference already set")
)

type IdentityRepository interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByID(ctx context.Context, id int) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	// SetExternalRef backfills the external reference only while it is unset.
	SetExternalRef(ctx context.Context, id int, ref string) error
	Delete(ctx context.Context, id int) error
}

type postgresIdentityRepository struct {
	db SQLExecutor
}

func NewPostgresIdentityRepository(db SQLExecutor) IdentityRepository {
	return &postgresIdentityRepository{db: db}
}

const identityColumns = `id, email, display_name, phone, password_hash, external_ref, role, created_at`

func (r *postgresIdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	query := `
		INSERT INTO identities (email, display_name, phone, password_hash, external_ref, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		identity.Email,
		identity.DisplayName,
		identity.Phone,
		identity.PasswordHash,
		identity.ExternalRef,
		identity.Role,
	).Scan(&identity.ID, &identity.CreatedAt)

	return constraintError(err, map[string]error{
		"identities_email_key":        ErrIdentityEmailConflict,
		"identities_external_ref_key": ErrIdentityExternalRefConflict,
	})
}

func (r *postgresIdentityRepository) GetByID(ctx context.Context, id int) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return scanIdentity(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresIdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`
	return scanIdentity(r.db.QueryRowContext(ctx, query, email))
}

func (r *postgresIdentityRepository) SetExternalRef(ctx context.Context, id int, ref string) error {
	query := `UPDATE identities SET external_ref = $1 WHERE id = $2 AND external_ref IS NULL`

	result, err := r.db.ExecContext(ctx, query, ref, id)
	if err != nil {
		return constraintError(err, map[string]error{
			"identities_external_ref_key": ErrIdentityExternalRefConflict,
		})
	}
	return checkAffectedRows(result, ErrExternalRefAlreadySet)
}

func (r *postgresIdentityRepository) Delete(ctx context.Context, id int) error {
	// Профиль удаляется каскадно, платежи и владение командами/турнирами блокируют удаление.
	result, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return constraintError(err, map[string]error{
			"payments_player_fkey":       ErrReferenceProtected,
			"teams_organizer_fkey":       ErrReferenceProtected,
			"tournaments_organizer_fkey": ErrReferenceProtected,
		})
	}
	return checkAffectedRows(result, ErrIdentityNotFound)
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	identity := &models.Identity{}
	err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.DisplayName,
		&identity.Phone,
		&identity.PasswordHash,
		&identity.ExternalRef,
		&identity.Role,
		&identity.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return identity, nil
}
