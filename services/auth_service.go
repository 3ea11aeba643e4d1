package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/Dosada05/tournament-core/utils"
)

const minPasswordLength = 8

type RegisterInput struct {
	Email       string      `json:"email"`
	Password    string      `json:"password"`
	DisplayName string      `json:"display_name"`
	Phone       *string     `json:"phone,omitempty"`
	Role        models.Role `json:"role,omitempty"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthService handles password accounts. Identities created here get their
// role profile in the same unit of work, exactly like synced identities.
type AuthService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewAuthService(store repositories.Store, logger *slog.Logger) *AuthService {
	return &AuthService{store: store, logger: logger}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.Identity, *models.RoleProfile, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, nil, err
	}
	role := input.Role
	if role == "" {
		role = models.RolePlayer
	}
	if !role.Valid() {
		return nil, nil, validationError("unknown role %q", role)
	}
	if role == models.RoleAdministrator {
		return nil, nil, validationError("administrator accounts cannot be self-registered")
	}
	if len(input.Password) < minPasswordLength {
		return nil, nil, validationError("password must be at least %d characters", minPasswordLength)
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = emailLocalPart(email)
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &models.Identity{
		Email:        email,
		DisplayName:  displayName,
		Phone:        input.Phone,
		PasswordHash: &hash,
		Role:         role,
	}
	var profile *models.RoleProfile
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if err := repos.Identities.Create(ctx, identity); err != nil {
			if errors.Is(err, repositories.ErrIdentityEmailConflict) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create identity: %w", err)
		}
		var err error
		profile, _, err = ensureProfile(ctx, repos, identity, role, models.ProfileDefaults{})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "identity registered", slog.Int("identity_id", identity.ID), slog.String("role", string(role)))
	return identity, profile, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*models.Identity, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var identity *models.Identity
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		identity, err = repos.Identities.GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrIdentityNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find identity by email: %w", err)
	}

	// Identities provisioned by an external provider have no password.
	if identity.PasswordHash == nil || !utils.CheckPasswordHash(input.Password, *identity.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return identity, nil
}
