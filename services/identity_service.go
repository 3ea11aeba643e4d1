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
)

type UpsertIdentityInput struct {
	Email       string
	Role        models.Role
	DisplayName string
	ExternalRef *string
}

// SyncInput is the verified tuple handed over by an external authentication
// provider.
type SyncInput struct {
	ExternalID  string
	Email       string
	DisplayName *string
	Role        *models.Role
}

type SyncResult struct {
	Identity *models.Identity
	Profile  *models.RoleProfile
	Created  bool
}

type IdentityService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewIdentityService(store repositories.Store, logger *slog.Logger) *IdentityService {
	return &IdentityService{store: store, logger: logger}
}

// UpsertByEmail returns the identity registered under in.Email, creating it
// when absent. A missing external reference is backfilled once; a different
// one is an ErrIdentityConflict. Concurrent callers with the same email all
// observe the same row and exactly one of them sees created=true.
func (s *IdentityService) UpsertByEmail(ctx context.Context, in UpsertIdentityInput) (*models.Identity, bool, error) {
	in, err := normalizeUpsertInput(in)
	if err != nil {
		return nil, false, err
	}

	var identity *models.Identity
	var created bool
	err = withConflictRetry(ctx, s.logger, "identity_upsert", func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
			var txErr error
			identity, created, txErr = upsertIdentity(ctx, repos, in)
			return txErr
		})
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.InfoContext(ctx, "identity created", slog.Int("identity_id", identity.ID), slog.String("role", string(identity.Role)))
	}
	return identity, created, nil
}

// Sync provisions the identity and its role profile for an externally
// authenticated account in one unit of work. Repeating the same call is a
// no-op that reports created=false.
func (s *IdentityService) Sync(ctx context.Context, in SyncInput) (*SyncResult, error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, validationError("external id is required")
	}
	if in.Role != nil && !in.Role.Valid() {
		return nil, validationError("unknown role %q", *in.Role)
	}

	upsert := UpsertIdentityInput{Email: in.Email, Role: models.RolePlayer, ExternalRef: &externalID}
	if in.Role != nil {
		upsert.Role = *in.Role
	}
	if in.DisplayName != nil {
		upsert.DisplayName = *in.DisplayName
	}
	upsert, err := normalizeUpsertInput(upsert)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	err = withConflictRetry(ctx, s.logger, "identity_sync", func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
			identity, created, err := upsertIdentity(ctx, repos, upsert)
			if err != nil {
				return err
			}
			role := identity.Role
			if in.Role != nil {
				role = *in.Role
			}
			profile, _, err := ensureProfile(ctx, repos, identity, role, models.ProfileDefaults{})
			if err != nil {
				return err
			}
			result.Identity, result.Profile, result.Created = identity, profile, created
			return nil
		})
	})
	if err != nil {
		metrics.IdentitySyncs.WithLabelValues(syncOutcome(err)).Inc()
		return nil, err
	}

	outcome := "existing"
	if result.Created {
		outcome = "created"
	}
	metrics.IdentitySyncs.WithLabelValues(outcome).Inc()
	s.logger.InfoContext(ctx, "identity synced",
		slog.Int("identity_id", result.Identity.ID),
		slog.Bool("created", result.Created),
	)
	return result, nil
}

func (s *IdentityService) Get(ctx context.Context, id int) (*models.Identity, error) {
	var identity *models.Identity
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		identity, err = repos.Identities.GetByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity %d: %w", id, err)
	}
	return identity, nil
}

// Delete hard-deletes the identity together with its profile and
// memberships. Payments, owned teams and owned tournaments block it.
func (s *IdentityService) Delete(ctx context.Context, id int) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		return repos.Identities.Delete(ctx, id)
	})
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "identity deleted", slog.Int("identity_id", id))
		return nil
	case errors.Is(err, repositories.ErrIdentityNotFound):
		return ErrIdentityNotFound
	case errors.Is(err, repositories.ErrReferenceProtected):
		return fmt.Errorf("%w: identity %d", ErrProtectedReference, id)
	default:
		return fmt.Errorf("failed to delete identity %d: %w", id, err)
	}
}

func normalizeUpsertInput(in UpsertIdentityInput) (UpsertIdentityInput, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return in, err
	}
	in.Email = email
	if !in.Role.Valid() {
		return in, validationError("unknown role %q", in.Role)
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.DisplayName == "" {
		in.DisplayName = emailLocalPart(email)
	}
	if in.ExternalRef != nil {
		ref := strings.TrimSpace(*in.ExternalRef)
		if ref == "" {
			in.ExternalRef = nil
		} else {
			in.ExternalRef = &ref
		}
	}
	return in, nil
}

func upsertIdentity(ctx context.Context, repos repositories.Repositories, in UpsertIdentityInput) (*models.Identity, bool, error) {
	existing, err := repos.Identities.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		if in.ExternalRef == nil {
			return existing, false, nil
		}
		if existing.ExternalRef != nil {
			if *existing.ExternalRef != *in.ExternalRef {
				return nil, false, fmt.Errorf("%w: %s", ErrIdentityConflict, in.Email)
			}
			return existing, false, nil
		}
		if err := repos.Identities.SetExternalRef(ctx, existing.ID, *in.ExternalRef); err != nil {
			if errors.Is(err, repositories.ErrIdentityExternalRefConflict) {
				return nil, false, fmt.Errorf("%w: external reference already linked to another identity", ErrIdentityConflict)
			}
			return nil, false, err
		}
		existing.ExternalRef = in.ExternalRef
		return existing, false, nil

	case errors.Is(err, repositories.ErrIdentityNotFound):
		identity := &models.Identity{
			Email:       in.Email,
			DisplayName: in.DisplayName,
			ExternalRef: in.ExternalRef,
			Role:        in.Role,
		}
		if err := repos.Identities.Create(ctx, identity); err != nil {
			if errors.Is(err, repositories.ErrIdentityExternalRefConflict) {
				return nil, false, fmt.Errorf("%w: external reference already linked to another identity", ErrIdentityConflict)
			}
			return nil, false, err
		}
		return identity, true, nil

	default:
		return nil, false, fmt.Errorf("failed to look up identity by email: %w", err)
	}
}

func syncOutcome(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrIdentityConflict):
		return "identity_conflict"
	case errors.Is(err, ErrRoleMismatch):
		return "role_mismatch"
	default:
		return "error"
	}
}
