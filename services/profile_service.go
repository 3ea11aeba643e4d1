package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

type ProfileService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewProfileService(store repositories.Store, logger *slog.Logger) *ProfileService {
	return &ProfileService{store: store, logger: logger}
}

// EnsureProfile returns the profile of identityID, creating it from defaults
// when it does not exist yet. An existing profile is returned unchanged.
func (s *ProfileService) EnsureProfile(ctx context.Context, identityID int, role models.Role, defaults models.ProfileDefaults) (*models.RoleProfile, bool, error) {
	var profile *models.RoleProfile
	var created bool
	err := withConflictRetry(ctx, s.logger, "profile_ensure", func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
			identity, err := repos.Identities.GetByID(ctx, identityID)
			if err != nil {
				if errors.Is(err, repositories.ErrIdentityNotFound) {
					return ErrIdentityNotFound
				}
				return fmt.Errorf("failed to load identity %d: %w", identityID, err)
			}
			profile, created, err = ensureProfile(ctx, repos, identity, role, defaults)
			return err
		})
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.InfoContext(ctx, "role profile created", slog.Int("identity_id", identityID), slog.String("role", string(role)))
	}
	return profile, created, nil
}

func (s *ProfileService) Get(ctx context.Context, identityID int) (*models.RoleProfile, error) {
	var profile *models.RoleProfile
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		profile, err = repos.Profiles.GetByIdentityID(ctx, identityID)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile %d: %w", identityID, err)
	}
	return profile, nil
}
