package memory

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

type identityRepository struct {
	st    *state
	clock clock.Clock
}

func (r *identityRepository) Create(_ context.Context, identity *models.Identity) error {
	if !identity.Role.Valid() {
		return fmt.Errorf("unknown role %q", identity.Role)
	}
	for _, existing := range r.st.identities {
		if existing.Email == identity.Email {
			return repositories.ErrIdentityEmailConflict
		}
		if identity.ExternalRef != nil && existing.ExternalRef != nil && *existing.ExternalRef == *identity.ExternalRef {
			return repositories.ErrIdentityExternalRefConflict
		}
	}

	r.st.lastIdentityID++
	identity.ID = r.st.lastIdentityID
	identity.CreatedAt = r.clock.Now()
	r.st.identities[identity.ID] = *identity
	return nil
}

func (r *identityRepository) GetByID(_ context.Context, id int) (*models.Identity, error) {
	identity, ok := r.st.identities[id]
	if !ok {
		return nil, repositories.ErrIdentityNotFound
	}
	return &identity, nil
}

func (r *identityRepository) GetByEmail(_ context.Context, email string) (*models.Identity, error) {
	for _, identity := range r.st.identities {
		if identity.Email == email {
			return &identity, nil
		}
	}
	return nil, repositories.ErrIdentityNotFound
}

func (r *identityRepository) SetExternalRef(_ context.Context, id int, ref string) error {
	identity, ok := r.st.identities[id]
	if !ok || identity.ExternalRef != nil {
		return repositories.ErrExternalRefAlreadySet
	}
	for otherID, other := range r.st.identities {
		if otherID != id && other.ExternalRef != nil && *other.ExternalRef == ref {
			return repositories.ErrIdentityExternalRefConflict
		}
	}
	identity.ExternalRef = &ref
	r.st.identities[id] = identity
	return nil
}

func (r *identityRepository) Delete(_ context.Context, id int) error {
	if _, ok := r.st.identities[id]; !ok {
		return repositories.ErrIdentityNotFound
	}
	for _, p := range r.st.payments {
		if p.PlayerID == id {
			return repositories.ErrReferenceProtected
		}
	}
	for _, t := range r.st.teams {
		if t.OrganizerID == id {
			return repositories.ErrReferenceProtected
		}
	}
	for _, t := range r.st.tournaments {
		if t.OrganizerID == id {
			return repositories.ErrReferenceProtected
		}
	}

	for key := range r.st.memberships {
		if key.playerID == id {
			delete(r.st.memberships, key)
		}
	}
	for matchID, m := range r.st.matches {
		if m.RefereeID != nil && *m.RefereeID == id {
			m.RefereeID = nil
			r.st.matches[matchID] = m
		}
	}
	delete(r.st.profiles, id)
	delete(r.st.identities, id)
	return nil
}

type profileRepository struct {
	st    *state
	clock clock.Clock
}

func (r *profileRepository) Create(_ context.Context, profile *models.RoleProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrProfileRoleMismatch, err)
	}
	if _, ok := r.st.profiles[profile.IdentityID]; ok {
		return repositories.ErrProfileConflict
	}
	identity, ok := r.st.identities[profile.IdentityID]
	if !ok || identity.Role != profile.Role {
		return repositories.ErrProfileRoleMismatch
	}

	profile.CreatedAt = r.clock.Now()
	r.st.profiles[profile.IdentityID] = *profile
	return nil
}

func (r *profileRepository) GetByIdentityID(_ context.Context, identityID int) (*models.RoleProfile, error) {
	profile, ok := r.st.profiles[identityID]
	if !ok {
		return nil, repositories.ErrProfileNotFound
	}
	return &profile, nil
}
