package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

type matchRepository struct {
	st    *state
	clock clock.Clock
}

func (r *matchRepository) Create(_ context.Context, m *models.Match) error {
	if m.Team1ID == m.Team2ID {
		return repositories.ErrMatchSameTeam
	}
	if _, ok := r.st.tournaments[m.TournamentID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	for _, teamID := range []int{m.Team1ID, m.Team2ID} {
		if _, ok := r.st.registrations[registrationKey{tournamentID: m.TournamentID, teamID: teamID}]; !ok {
			return repositories.ErrMatchTeamNotRegistered
		}
	}

	r.st.lastMatchID++
	m.ID = r.st.lastMatchID
	m.CreatedAt = r.clock.Now()
	r.st.matches[m.ID] = *m
	return nil
}

func (r *matchRepository) GetByID(_ context.Context, id int) (*models.Match, error) {
	m, ok := r.st.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return &m, nil
}

func (r *matchRepository) GetByIDForUpdate(ctx context.Context, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r *matchRepository) ListByTournament(_ context.Context, tournamentID int) ([]models.Match, error) {
	matches := make([]models.Match, 0)
	for _, m := range r.st.matches {
		if m.TournamentID == tournamentID {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].ScheduledAt.Equal(matches[j].ScheduledAt) {
			return matches[i].ScheduledAt.Before(matches[j].ScheduledAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

func (r *matchRepository) UpdateStatus(_ context.Context, id int, from, to models.MatchStatus) error {
	m, ok := r.st.matches[id]
	if !ok || m.Status != from {
		return repositories.ErrStaleStatus
	}
	m.Status = to
	r.st.matches[id] = m
	return nil
}

func (r *matchRepository) UpdateSchedule(_ context.Context, id int, scheduledAt time.Time) error {
	m, ok := r.st.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.ScheduledAt = scheduledAt
	r.st.matches[id] = m
	return nil
}

func (r *matchRepository) UpdateScore(_ context.Context, id int, score1, score2 int) error {
	m, ok := r.st.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Score1 = &score1
	m.Score2 = &score2
	r.st.matches[id] = m
	return nil
}

func (r *matchRepository) SetReferee(_ context.Context, id int, refereeID int) error {
	m, ok := r.st.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if !r.st.hasProfile(refereeID, models.RoleReferee) {
		return repositories.ErrMatchRefereeInvalid
	}
	m.RefereeID = &refereeID
	r.st.matches[id] = m
	return nil
}
