package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/metrics"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

type CreateTournamentInput struct {
	OrganizerID   int                     `json:"-"`
	Name          string                  `json:"name"`
	Description   string                  `json:"description"`
	Rules         string                  `json:"rules"`
	Format        models.TournamentFormat `json:"format"`
	StartTime     time.Time               `json:"start_time"`
	EndTime       time.Time               `json:"end_time"`
	EntryFeeCents int64                   `json:"entry_fee_cents"`
	MaxTeams      int                     `json:"max_teams"`
}

type TournamentService struct {
	store  repositories.Store
	clock  clock.Clock
	logger *slog.Logger
}

func NewTournamentService(store repositories.Store, clk clock.Clock, logger *slog.Logger) *TournamentService {
	return &TournamentService{store: store, clock: clk, logger: logger}
}

func (s *TournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if err := validateTournamentInput(&input); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		Name:          input.Name,
		Description:   input.Description,
		Rules:         input.Rules,
		Format:        input.Format,
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		EntryFeeCents: input.EntryFeeCents,
		Status:        models.TournamentPlanned,
		OrganizerID:   input.OrganizerID,
		MaxTeams:      input.MaxTeams,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if _, err := requireProfile(ctx, repos, input.OrganizerID, models.RoleOrganizer, ErrNotAnOrganizer); err != nil {
			return err
		}
		if err := repos.Tournaments.Create(ctx, t); err != nil {
			switch {
			case errors.Is(err, repositories.ErrTournamentDatesInvalid):
				return validationError("%v", err)
			case errors.Is(err, repositories.ErrTournamentOrganizerInvalid):
				return fmt.Errorf("%w: identity %d", ErrNotAnOrganizer, input.OrganizerID)
			}
			return fmt.Errorf("failed to create tournament: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament created", slog.Int("tournament_id", t.ID), slog.Int("organizer_id", t.OrganizerID))
	return t, nil
}

func (s *TournamentService) Get(ctx context.Context, id int) (*models.Tournament, error) {
	var t *models.Tournament
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		t, err = getTournament(ctx, repos, id, false)
		return err
	})
	return t, err
}

func (s *TournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, validationError("unknown tournament status %q", *filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, validationError("limit and offset must not be negative")
	}

	var list []models.Tournament
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		list, err = repos.Tournaments.List(ctx, filter)
		return err
	})
	return list, err
}

func (s *TournamentService) Start(ctx context.Context, id int) (*models.Tournament, error) {
	return s.Transition(ctx, id, models.TournamentStart)
}

func (s *TournamentService) Finish(ctx context.Context, id int) (*models.Tournament, error) {
	return s.Transition(ctx, id, models.TournamentFinish)
}

func (s *TournamentService) Cancel(ctx context.Context, id int) (*models.Tournament, error) {
	return s.Transition(ctx, id, models.TournamentCancel)
}

// Transition applies event to the tournament. The edge must exist in the
// transition table and its guard must hold at the injected clock's time:
// start needs the start time reached and at least one registered team,
// finish needs the end time reached.
func (s *TournamentService) Transition(ctx context.Context, id int, event models.TournamentEvent) (*models.Tournament, error) {
	if !event.Valid() {
		return nil, validationError("unknown tournament event %q", event)
	}

	var t *models.Tournament
	var from models.TournamentStatus
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		t, err = getTournament(ctx, repos, id, true)
		if err != nil {
			return err
		}
		from = t.Status

		to, ok := models.NextTournamentStatus(from, event)
		if !ok {
			return fmt.Errorf("%w: tournament %d cannot %s from %s", ErrInvalidTransition, id, event, from)
		}
		if err := s.checkTournamentGuard(t, event, to); err != nil {
			return err
		}

		if err := repos.Tournaments.UpdateStatus(ctx, id, from, to); err != nil {
			if errors.Is(err, repositories.ErrStaleStatus) {
				return fmt.Errorf("%w: tournament %d %s -> %s: status changed concurrently", ErrInvalidTransition, id, from, to)
			}
			return fmt.Errorf("failed to update tournament status: %w", err)
		}
		t.Status = to
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			metrics.RejectedTransitions.WithLabelValues("tournament").Inc()
		}
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues("tournament", string(from), string(t.Status)).Inc()
	s.logger.InfoContext(ctx, "tournament status changed",
		slog.Int("tournament_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(t.Status)),
	)
	return t, nil
}

func (s *TournamentService) checkTournamentGuard(t *models.Tournament, event models.TournamentEvent, to models.TournamentStatus) error {
	now := s.clock.Now()
	switch event {
	case models.TournamentStart:
		if now.Before(t.StartTime) {
			return fmt.Errorf("%w: tournament %d %s -> %s: start time %s not reached",
				ErrInvalidTransition, t.ID, t.Status, to, t.StartTime.Format(time.RFC3339))
		}
		if t.RegisteredTeams < 1 {
			return fmt.Errorf("%w: tournament %d %s -> %s: no registered teams",
				ErrInvalidTransition, t.ID, t.Status, to)
		}
	case models.TournamentFinish:
		if now.Before(t.EndTime) {
			return fmt.Errorf("%w: tournament %d %s -> %s: end time %s not reached",
				ErrInvalidTransition, t.ID, t.Status, to, t.EndTime.Format(time.RFC3339))
		}
	}
	return nil
}

// RegisterTeam enters team into a planned tournament. The tournament row is
// locked for the unit of work so that concurrent registrations cannot push
// the count past MaxTeams.
func (s *TournamentService) RegisterTeam(ctx context.Context, tournamentID, teamID int) (*models.TournamentRegistration, error) {
	reg := &models.TournamentRegistration{TournamentID: tournamentID, TeamID: teamID}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		t, err := getTournament(ctx, repos, tournamentID, true)
		if err != nil {
			return err
		}
		if t.Status != models.TournamentPlanned {
			return fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotOpen, tournamentID, t.Status)
		}
		if _, err := getTeam(ctx, repos, teamID); err != nil {
			return err
		}

		registered, err := repos.Registrations.Exists(ctx, tournamentID, teamID)
		if err != nil {
			return fmt.Errorf("failed to check registration: %w", err)
		}
		if registered {
			return fmt.Errorf("%w: team %d in tournament %d", ErrDuplicateRegistration, teamID, tournamentID)
		}
		if t.RegisteredTeams >= t.MaxTeams {
			return fmt.Errorf("%w: %d of %d teams registered", ErrCapacityExceeded, t.RegisteredTeams, t.MaxTeams)
		}

		if err := repos.Registrations.Add(ctx, reg); err != nil {
			switch {
			case errors.Is(err, repositories.ErrRegistrationConflict):
				return fmt.Errorf("%w: team %d in tournament %d", ErrDuplicateRegistration, teamID, tournamentID)
			case errors.Is(err, repositories.ErrRegistrationInvalid):
				return fmt.Errorf("%w: %d", ErrTeamNotFound, teamID)
			}
			return fmt.Errorf("failed to register team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "team registered", slog.Int("tournament_id", tournamentID), slog.Int("team_id", teamID))
	return reg, nil
}

func (s *TournamentService) Registrations(ctx context.Context, tournamentID int) ([]models.TournamentRegistration, error) {
	var regs []models.TournamentRegistration
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if _, err := getTournament(ctx, repos, tournamentID, false); err != nil {
			return err
		}
		var err error
		regs, err = repos.Registrations.ListByTournament(ctx, tournamentID)
		return err
	})
	return regs, err
}

func validateTournamentInput(input *CreateTournamentInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return validationError("tournament name is required")
	}
	if !input.Format.Valid() {
		return validationError("unknown tournament format %q", input.Format)
	}
	if input.StartTime.IsZero() || input.EndTime.IsZero() {
		return validationError("tournament start and end times are required")
	}
	if !input.EndTime.After(input.StartTime) {
		return validationError("end time (%s) must be after start time (%s)",
			input.EndTime.Format(time.RFC3339), input.StartTime.Format(time.RFC3339))
	}
	if input.EntryFeeCents < 0 {
		return validationError("entry fee must not be negative")
	}
	if input.MaxTeams < 1 {
		return validationError("max teams must be at least 1")
	}
	return nil
}

func getTournament(ctx context.Context, repos repositories.Repositories, id int, forUpdate bool) (*models.Tournament, error) {
	var t *models.Tournament
	var err error
	if forUpdate {
		t, err = repos.Tournaments.GetByIDForUpdate(ctx, id)
	} else {
		t, err = repos.Tournaments.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrTournamentNotFound, id)
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", id, err)
	}
	if forUpdate {
		// RegisteredTeams считаем отдельным запросом уже под блокировкой строки.
		t.RegisteredTeams, err = repos.Registrations.Count(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to count registrations for tournament %d: %w", id, err)
		}
	}
	return t, nil
}
