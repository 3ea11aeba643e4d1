package memory

import (
	"context"
	"sort"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

type teamRepository struct {
	st    *state
	clock clock.Clock
}

func (r *teamRepository) Create(_ context.Context, team *models.Team) error {
	for _, existing := range r.st.teams {
		if existing.Name == team.Name || existing.Slug == team.Slug {
			return repositories.ErrTeamNameConflict
		}
	}
	if !r.st.hasProfile(team.OrganizerID, models.RoleOrganizer) {
		return repositories.ErrTeamOrganizerInvalid
	}

	r.st.lastTeamID++
	team.ID = r.st.lastTeamID
	team.CreatedAt = r.clock.Now()
	r.st.teams[team.ID] = *team
	return nil
}

func (r *teamRepository) GetByID(_ context.Context, id int) (*models.Team, error) {
	team, ok := r.st.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return &team, nil
}

func (r *teamRepository) UpdateLogoKey(_ context.Context, teamID int, logoKey *string) error {
	team, ok := r.st.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.LogoKey = logoKey
	r.st.teams[teamID] = team
	return nil
}

type rosterRepository struct {
	st    *state
	clock clock.Clock
}

func (r *rosterRepository) Add(_ context.Context, m *models.TeamMembership) error {
	key := membershipKey{teamID: m.TeamID, playerID: m.PlayerID}
	if _, ok := r.st.memberships[key]; ok {
		return repositories.ErrMembershipConflict
	}
	if _, ok := r.st.teams[m.TeamID]; !ok {
		return repositories.ErrMembershipTeamInvalid
	}
	if !r.st.hasProfile(m.PlayerID, models.RolePlayer) {
		return repositories.ErrMembershipPlayerInvalid
	}

	m.Active = true
	m.JoinedAt = r.clock.Now()
	r.st.memberships[key] = *m
	return nil
}

func (r *rosterRepository) Get(_ context.Context, teamID, playerID int) (*models.TeamMembership, error) {
	m, ok := r.st.memberships[membershipKey{teamID: teamID, playerID: playerID}]
	if !ok {
		return nil, repositories.ErrMembershipNotFound
	}
	return &m, nil
}

func (r *rosterRepository) Reactivate(_ context.Context, teamID, playerID int, role models.RoleInTeam) error {
	key := membershipKey{teamID: teamID, playerID: playerID}
	m, ok := r.st.memberships[key]
	if !ok || m.Active {
		return repositories.ErrMembershipConflict
	}
	m.Active = true
	m.RoleInTeam = role
	m.JoinedAt = r.clock.Now()
	r.st.memberships[key] = m
	return nil
}

func (r *rosterRepository) Deactivate(_ context.Context, teamID, playerID int) error {
	key := membershipKey{teamID: teamID, playerID: playerID}
	m, ok := r.st.memberships[key]
	if !ok {
		return repositories.ErrMembershipNotFound
	}
	m.Active = false
	r.st.memberships[key] = m
	return nil
}

func (r *rosterRepository) ListByTeam(_ context.Context, teamID int, includeInactive bool) ([]models.TeamMembership, error) {
	members := make([]models.TeamMembership, 0)
	for key, m := range r.st.memberships {
		if key.teamID != teamID || (!m.Active && !includeInactive) {
			continue
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].PlayerID < members[j].PlayerID
	})
	return members, nil
}
