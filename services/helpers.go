package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/tournament-core/metrics"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/Dosada05/tournament-core/utils"
)

// maxConflictAttempts bounds how many times a unit of work is re-run after
// losing a uniqueness race.
const maxConflictAttempts = 3

// retryableConflicts are storage conflicts after which a fresh unit of work
// is expected to find the winner's row.
var retryableConflicts = []error{
	repositories.ErrIdentityEmailConflict,
	repositories.ErrExternalRefAlreadySet,
	repositories.ErrProfileConflict,
}

func isRetryableConflict(err error) bool {
	for _, target := range retryableConflicts {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// withConflictRetry re-runs fn while it fails with a retryable conflict.
// PostgreSQL aborts the transaction on a constraint violation, so the retry
// has to start a new unit of work rather than continue the old one.
func withConflictRetry(ctx context.Context, logger *slog.Logger, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		err = fn()
		if !isRetryableConflict(err) {
			return err
		}
		metrics.ConflictRetries.WithLabelValues(operation).Inc()
		logger.WarnContext(ctx, "uniqueness conflict, re-reading",
			slog.String("operation", operation),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}
	return fmt.Errorf("%s: still conflicting after %d attempts: %w", operation, maxConflictAttempts, err)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.IsValidEmail(email) {
		return "", validationError("malformed email %q", email)
	}
	return email, nil
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// requireProfile loads identityID's profile and checks its role, returning
// notRole wrapped with context when the identity has no such profile.
func requireProfile(ctx context.Context, repos repositories.Repositories, identityID int, role models.Role, notRole error) (*models.RoleProfile, error) {
	profile, err := repos.Profiles.GetByIdentityID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: identity %d", notRole, identityID)
		}
		return nil, fmt.Errorf("failed to load profile %d: %w", identityID, err)
	}
	if profile.Role != role {
		return nil, fmt.Errorf("%w: identity %d is %s", notRole, identityID, profile.Role)
	}
	return profile, nil
}

// ensureProfile returns the existing profile of identity or creates it from
// defaults. A retryable conflict is returned untouched so the caller re-runs
// the unit of work and finds the concurrent winner.
func ensureProfile(ctx context.Context, repos repositories.Repositories, identity *models.Identity, role models.Role, defaults models.ProfileDefaults) (*models.RoleProfile, bool, error) {
	if !role.Valid() {
		return nil, false, validationError("unknown role %q", role)
	}
	if role != identity.Role {
		return nil, false, fmt.Errorf("%w: identity %d is %s, requested %s", ErrRoleMismatch, identity.ID, identity.Role, role)
	}
	if defaults.SkillLevel != "" && !defaults.SkillLevel.Valid() {
		return nil, false, validationError("unknown skill level %q", defaults.SkillLevel)
	}

	existing, err := repos.Profiles.GetByIdentityID(ctx, identity.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repositories.ErrProfileNotFound) {
		return nil, false, fmt.Errorf("failed to load profile %d: %w", identity.ID, err)
	}

	profile := models.NewRoleProfile(identity, role, defaults)
	if err := repos.Profiles.Create(ctx, profile); err != nil {
		switch {
		case errors.Is(err, repositories.ErrProfileConflict):
			return nil, false, err
		case errors.Is(err, repositories.ErrProfileRoleMismatch):
			return nil, false, fmt.Errorf("%w: %v", ErrRoleMismatch, err)
		}
		return nil, false, fmt.Errorf("failed to create profile %d: %w", identity.ID, err)
	}
	return profile, true, nil
}
