package memory

import (
	"context"
	"sort"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

type tournamentRepository struct {
	st    *state
	clock clock.Clock
}

func (r *tournamentRepository) Create(_ context.Context, t *models.Tournament) error {
	if !r.st.hasProfile(t.OrganizerID, models.RoleOrganizer) {
		return repositories.ErrTournamentOrganizerInvalid
	}
	if !t.EndTime.After(t.StartTime) {
		return repositories.ErrTournamentDatesInvalid
	}

	r.st.lastTournamentID++
	t.ID = r.st.lastTournamentID
	t.CreatedAt = r.clock.Now()
	t.RegisteredTeams = 0
	r.st.tournaments[t.ID] = *t
	return nil
}

func (r *tournamentRepository) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	t, ok := r.st.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	t.RegisteredTeams = r.st.registrationCount(id)
	return &t, nil
}

// GetByIDForUpdate needs no extra locking: the store mutex already
// serializes units of work.
func (r *tournamentRepository) GetByIDForUpdate(ctx context.Context, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, id)
}

func (r *tournamentRepository) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments := make([]models.Tournament, 0)
	for id, t := range r.st.tournaments {
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		t.RegisteredTeams = r.st.registrationCount(id)
		tournaments = append(tournaments, t)
	}
	sort.Slice(tournaments, func(i, j int) bool {
		if !tournaments[i].StartTime.Equal(tournaments[j].StartTime) {
			return tournaments[i].StartTime.After(tournaments[j].StartTime)
		}
		return tournaments[i].ID > tournaments[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(tournaments) {
			return []models.Tournament{}, nil
		}
		tournaments = tournaments[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(tournaments) {
		tournaments = tournaments[:filter.Limit]
	}
	return tournaments, nil
}

func (r *tournamentRepository) UpdateStatus(_ context.Context, id int, from, to models.TournamentStatus) error {
	t, ok := r.st.tournaments[id]
	if !ok || t.Status != from {
		return repositories.ErrStaleStatus
	}
	t.Status = to
	r.st.tournaments[id] = t
	return nil
}

func (s *state) registrationCount(tournamentID int) int {
	count := 0
	for key := range s.registrations {
		if key.tournamentID == tournamentID {
			count++
		}
	}
	return count
}

type registrationRepository struct {
	st    *state
	clock clock.Clock
}

func (r *registrationRepository) Add(_ context.Context, reg *models.TournamentRegistration) error {
	key := registrationKey{tournamentID: reg.TournamentID, teamID: reg.TeamID}
	if _, ok := r.st.registrations[key]; ok {
		return repositories.ErrRegistrationConflict
	}
	if _, ok := r.st.tournaments[reg.TournamentID]; !ok {
		return repositories.ErrRegistrationInvalid
	}
	if _, ok := r.st.teams[reg.TeamID]; !ok {
		return repositories.ErrRegistrationInvalid
	}

	reg.RegisteredAt = r.clock.Now()
	r.st.registrations[key] = *reg
	return nil
}

func (r *registrationRepository) Exists(_ context.Context, tournamentID, teamID int) (bool, error) {
	_, ok := r.st.registrations[registrationKey{tournamentID: tournamentID, teamID: teamID}]
	return ok, nil
}

func (r *registrationRepository) Count(_ context.Context, tournamentID int) (int, error) {
	return r.st.registrationCount(tournamentID), nil
}

func (r *registrationRepository) ListByTournament(_ context.Context, tournamentID int) ([]models.TournamentRegistration, error) {
	regs := make([]models.TournamentRegistration, 0)
	for key, reg := range r.st.registrations {
		if key.tournamentID == tournamentID {
			regs = append(regs, reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool {
		if !regs[i].RegisteredAt.Equal(regs[j].RegisteredAt) {
			return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
		}
		return regs[i].TeamID < regs[j].TeamID
	})
	return regs, nil
}
