package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tournament-core/metrics"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

// Типы событий, которые получают подписчики комнаты турнира.
const (
	EventMatchScheduled       = "match.scheduled"
	EventMatchStatusChanged   = "match.status_changed"
	EventMatchScoreRecorded   = "match.score_recorded"
	EventMatchRefereeAssigned = "match.referee_assigned"
)

// EventPublisher fans committed match changes out to live subscribers.
type EventPublisher interface {
	Publish(tournamentID int, eventType string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(int, string, interface{}) {}

type ScheduleMatchInput struct {
	TournamentID    int       `json:"-"`
	Team1ID         int       `json:"team1_id"`
	Team2ID         int       `json:"team2_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	Venue           *string   `json:"venue,omitempty"`
	Name            *string   `json:"name,omitempty"`
}

type MatchService struct {
	store     repositories.Store
	publisher EventPublisher
	logger    *slog.Logger
}

// NewMatchService wires the match scheduler. A nil publisher disables live
// events.
func NewMatchService(store repositories.Store, publisher EventPublisher, logger *slog.Logger) *MatchService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &MatchService{store: store, publisher: publisher, logger: logger}
}

func (s *MatchService) Schedule(ctx context.Context, input ScheduleMatchInput) (*models.Match, error) {
	if input.Team1ID == input.Team2ID {
		return nil, fmt.Errorf("%w: team %d", ErrSameTeam, input.Team1ID)
	}
	if input.ScheduledAt.IsZero() {
		return nil, validationError("scheduled time is required")
	}
	if input.DurationMinutes != nil && *input.DurationMinutes <= 0 {
		return nil, validationError("duration must be a positive number of minutes")
	}

	match := &models.Match{
		TournamentID:    input.TournamentID,
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
		Venue:           input.Venue,
		Team1ID:         input.Team1ID,
		Team2ID:         input.Team2ID,
		Status:          models.MatchPlanned,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		t, err := getTournament(ctx, repos, input.TournamentID, false)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotOpen, t.ID, t.Status)
		}

		team1, err := getTeam(ctx, repos, input.Team1ID)
		if err != nil {
			return err
		}
		team2, err := getTeam(ctx, repos, input.Team2ID)
		if err != nil {
			return err
		}
		for _, teamID := range []int{team1.ID, team2.ID} {
			registered, err := repos.Registrations.Exists(ctx, t.ID, teamID)
			if err != nil {
				return fmt.Errorf("failed to check registration: %w", err)
			}
			if !registered {
				return fmt.Errorf("%w: team %d in tournament %d", ErrTeamNotRegistered, teamID, t.ID)
			}
		}

		match.Name = models.MatchName(team1.Name, team2.Name)
		if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
			match.Name = strings.TrimSpace(*input.Name)
		}

		if err := repos.Matches.Create(ctx, match); err != nil {
			switch {
			case errors.Is(err, repositories.ErrMatchSameTeam):
				return ErrSameTeam
			case errors.Is(err, repositories.ErrMatchTeamNotRegistered):
				return ErrTeamNotRegistered
			case errors.Is(err, repositories.ErrTournamentNotFound):
				return fmt.Errorf("%w: %d", ErrTournamentNotFound, input.TournamentID)
			}
			return fmt.Errorf("failed to create match: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match scheduled",
		slog.Int("match_id", match.ID),
		slog.Int("tournament_id", match.TournamentID),
		slog.String("name", match.Name),
	)
	s.publisher.Publish(match.TournamentID, EventMatchScheduled, match)
	return match, nil
}

func (s *MatchService) AssignReferee(ctx context.Context, matchID, refereeID int) (*models.Match, error) {
	var match *models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		match, err = getMatch(ctx, repos, matchID, true)
		if err != nil {
			return err
		}
		if match.Status == models.MatchFinished {
			return fmt.Errorf("%w: match %d", ErrMatchFinished, matchID)
		}
		if _, err := requireProfile(ctx, repos, refereeID, models.RoleReferee, ErrNotAReferee); err != nil {
			return err
		}
		if err := repos.Matches.SetReferee(ctx, matchID, refereeID); err != nil {
			if errors.Is(err, repositories.ErrMatchRefereeInvalid) {
				return fmt.Errorf("%w: identity %d", ErrNotAReferee, refereeID)
			}
			return fmt.Errorf("failed to assign referee: %w", err)
		}
		match.RefereeID = &refereeID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "referee assigned", slog.Int("match_id", matchID), slog.Int("referee_id", refereeID))
	s.publisher.Publish(match.TournamentID, EventMatchRefereeAssigned, match)
	return match, nil
}

// RecordScore stores the score of a match that is being played or already
// over. The status is left as it is.
func (s *MatchService) RecordScore(ctx context.Context, matchID, score1, score2 int) (*models.Match, error) {
	if score1 < 0 || score2 < 0 {
		return nil, validationError("scores must not be negative")
	}

	var match *models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		match, err = getMatch(ctx, repos, matchID, true)
		if err != nil {
			return err
		}
		if match.Status != models.MatchInProgress && match.Status != models.MatchFinished {
			return fmt.Errorf("%w: match %d is %s", ErrMatchNotInPlay, matchID, match.Status)
		}
		if err := repos.Matches.UpdateScore(ctx, matchID, score1, score2); err != nil {
			return fmt.Errorf("failed to record score: %w", err)
		}
		match.Score1, match.Score2 = &score1, &score2
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "score recorded",
		slog.Int("match_id", matchID),
		slog.Int("score1", score1),
		slog.Int("score2", score2),
	)
	s.publisher.Publish(match.TournamentID, EventMatchScoreRecorded, match)
	return match, nil
}

// Transition moves the match along its status machine. rescheduleAt is
// required by the reschedule event and ignored otherwise.
func (s *MatchService) Transition(ctx context.Context, matchID int, event models.MatchEvent, rescheduleAt *time.Time) (*models.Match, error) {
	if !event.Valid() {
		return nil, validationError("unknown match event %q", event)
	}
	if event == models.MatchReschedule && (rescheduleAt == nil || rescheduleAt.IsZero()) {
		return nil, validationError("reschedule requires a new scheduled time")
	}

	var match *models.Match
	var from models.MatchStatus
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		match, err = getMatch(ctx, repos, matchID, true)
		if err != nil {
			return err
		}
		from = match.Status

		to, ok := models.NextMatchStatus(from, event)
		if !ok {
			return fmt.Errorf("%w: match %d cannot %s from %s", ErrInvalidTransition, matchID, event, from)
		}

		if event == models.MatchReschedule {
			if err := repos.Matches.UpdateSchedule(ctx, matchID, *rescheduleAt); err != nil {
				return fmt.Errorf("failed to reschedule match: %w", err)
			}
			match.ScheduledAt = *rescheduleAt
		}
		if err := repos.Matches.UpdateStatus(ctx, matchID, from, to); err != nil {
			if errors.Is(err, repositories.ErrStaleStatus) {
				return fmt.Errorf("%w: match %d %s -> %s: status changed concurrently", ErrInvalidTransition, matchID, from, to)
			}
			return fmt.Errorf("failed to update match status: %w", err)
		}
		match.Status = to
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			metrics.RejectedTransitions.WithLabelValues("match").Inc()
		}
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues("match", string(from), string(match.Status)).Inc()
	s.logger.InfoContext(ctx, "match status changed",
		slog.Int("match_id", matchID),
		slog.String("from", string(from)),
		slog.String("to", string(match.Status)),
	)
	s.publisher.Publish(match.TournamentID, EventMatchStatusChanged, match)
	return match, nil
}

func (s *MatchService) Get(ctx context.Context, matchID int) (*models.Match, error) {
	var match *models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		match, err = getMatch(ctx, repos, matchID, false)
		return err
	})
	return match, err
}

func (s *MatchService) List(ctx context.Context, tournamentID int) ([]models.Match, error) {
	var list []models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if _, err := getTournament(ctx, repos, tournamentID, false); err != nil {
			return err
		}
		var err error
		list, err = repos.Matches.ListByTournament(ctx, tournamentID)
		return err
	})
	return list, err
}

func getMatch(ctx context.Context, repos repositories.Repositories, id int, forUpdate bool) (*models.Match, error) {
	var m *models.Match
	var err error
	if forUpdate {
		m, err = repos.Matches.GetByIDForUpdate(ctx, id)
	} else {
		m, err = repos.Matches.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrMatchNotFound, id)
		}
		return nil, fmt.Errorf("failed to load match %d: %w", id, err)
	}
	return m, nil
}
