package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/Dosada05/tournament-core/storage"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const maxTeamNameLength = 100

var logoExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

type RosterService struct {
	store    repositories.Store
	uploader storage.FileUploader
	logger   *slog.Logger
}

// NewRosterService wires the roster engine. uploader may be nil, in which
// case SetLogo fails with ErrUploadsDisabled.
func NewRosterService(store repositories.Store, uploader storage.FileUploader, logger *slog.Logger) *RosterService {
	return &RosterService{store: store, uploader: uploader, logger: logger}
}

func (s *RosterService) CreateTeam(ctx context.Context, organizerID int, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("team name is required")
	}
	if utf8.RuneCountInString(name) > maxTeamNameLength {
		return nil, validationError("team name must be at most %d characters", maxTeamNameLength)
	}
	teamSlug := slug.Make(name)
	if teamSlug == "" {
		return nil, validationError("team name must contain letters or digits")
	}

	team := &models.Team{Name: name, Slug: teamSlug, OrganizerID: organizerID}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if _, err := requireProfile(ctx, repos, organizerID, models.RoleOrganizer, ErrNotAnOrganizer); err != nil {
			return err
		}
		if err := repos.Teams.Create(ctx, team); err != nil {
			switch {
			case errors.Is(err, repositories.ErrTeamNameConflict):
				return fmt.Errorf("%w: %q", ErrDuplicateName, name)
			case errors.Is(err, repositories.ErrTeamOrganizerInvalid):
				return fmt.Errorf("%w: identity %d", ErrNotAnOrganizer, organizerID)
			}
			return fmt.Errorf("failed to create team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "team created", slog.Int("team_id", team.ID), slog.Int("organizer_id", organizerID))
	return team, nil
}

func (s *RosterService) GetTeam(ctx context.Context, teamID int) (*models.Team, error) {
	var team *models.Team
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		team, err = getTeam(ctx, repos, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.populateLogoURL(team)
	return team, nil
}

// AddMember puts player on team. A player removed earlier is reactivated
// with the new role instead of getting a second membership row.
func (s *RosterService) AddMember(ctx context.Context, teamID, playerID int, role models.RoleInTeam) (*models.TeamMembership, error) {
	if role == "" {
		role = models.TeamRoleMember
	}
	if !role.Valid() {
		return nil, validationError("unknown team role %q", role)
	}

	var membership *models.TeamMembership
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if _, err := getTeam(ctx, repos, teamID); err != nil {
			return err
		}
		if _, err := requireProfile(ctx, repos, playerID, models.RolePlayer, ErrNotAPlayer); err != nil {
			return err
		}

		existing, err := repos.Rosters.Get(ctx, teamID, playerID)
		switch {
		case err == nil && existing.Active:
			return fmt.Errorf("%w: player %d in team %d", ErrDuplicateMembership, playerID, teamID)
		case err == nil:
			if err := repos.Rosters.Reactivate(ctx, teamID, playerID, role); err != nil {
				return mapMembershipError(err, teamID, playerID)
			}
			membership, err = repos.Rosters.Get(ctx, teamID, playerID)
			return err
		case !errors.Is(err, repositories.ErrMembershipNotFound):
			return fmt.Errorf("failed to load membership: %w", err)
		}

		membership = &models.TeamMembership{TeamID: teamID, PlayerID: playerID, RoleInTeam: role}
		if err := repos.Rosters.Add(ctx, membership); err != nil {
			return mapMembershipError(err, teamID, playerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "team member added",
		slog.Int("team_id", teamID),
		slog.Int("player_id", playerID),
		slog.String("role_in_team", string(membership.RoleInTeam)),
	)
	return membership, nil
}

// RemoveMember marks the membership inactive. Removing an already inactive
// member is a no-op.
func (s *RosterService) RemoveMember(ctx context.Context, teamID, playerID int) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		existing, err := repos.Rosters.Get(ctx, teamID, playerID)
		if err != nil {
			if errors.Is(err, repositories.ErrMembershipNotFound) {
				return fmt.Errorf("%w: player %d in team %d", ErrMembershipNotFound, playerID, teamID)
			}
			return err
		}
		if !existing.Active {
			return nil
		}
		return repos.Rosters.Deactivate(ctx, teamID, playerID)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "team member removed", slog.Int("team_id", teamID), slog.Int("player_id", playerID))
	return nil
}

func (s *RosterService) Roster(ctx context.Context, teamID int, includeInactive bool) ([]models.TeamMembership, error) {
	var members []models.TeamMembership
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if _, err := getTeam(ctx, repos, teamID); err != nil {
			return err
		}
		var err error
		members, err = repos.Rosters.ListByTeam(ctx, teamID, includeInactive)
		return err
	})
	return members, err
}

// SetLogo uploads a new team logo and swaps the stored key. The previous
// object is removed on a best-effort basis.
func (s *RosterService) SetLogo(ctx context.Context, teamID int, contentType string, body io.Reader) (*models.Team, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}
	ext, ok := logoExtensions[contentType]
	if !ok {
		return nil, validationError("unsupported logo content type %q", contentType)
	}

	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("teams/%d/logo-%s%s", teamID, uuid.NewString(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload logo for team %d: %w", teamID, err)
	}

	var team *models.Team
	var previousKey *string
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		var err error
		team, err = getTeam(ctx, repos, teamID)
		if err != nil {
			return err
		}
		previousKey = team.LogoKey
		if err := repos.Teams.UpdateLogoKey(ctx, teamID, &key); err != nil {
			return err
		}
		team.LogoKey = &key
		return nil
	})
	if err != nil {
		s.deleteObject(ctx, key)
		return nil, err
	}

	if previousKey != nil && *previousKey != "" {
		s.deleteObject(ctx, *previousKey)
	}
	s.populateLogoURL(team)
	return team, nil
}

func (s *RosterService) deleteObject(ctx context.Context, key string) {
	if err := s.uploader.Delete(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete logo object", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *RosterService) populateLogoURL(team *models.Team) {
	if team == nil || team.LogoKey == nil || *team.LogoKey == "" || s.uploader == nil {
		return
	}
	url := s.uploader.GetPublicURL(*team.LogoKey)
	if url != "" {
		team.LogoURL = &url
	}
}

func getTeam(ctx context.Context, repos repositories.Repositories, teamID int) (*models.Team, error) {
	team, err := repos.Teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrTeamNotFound, teamID)
		}
		return nil, fmt.Errorf("failed to load team %d: %w", teamID, err)
	}
	return team, nil
}

func mapMembershipError(err error, teamID, playerID int) error {
	switch {
	case errors.Is(err, repositories.ErrMembershipConflict):
		return fmt.Errorf("%w: player %d in team %d", ErrDuplicateMembership, playerID, teamID)
	case errors.Is(err, repositories.ErrMembershipPlayerInvalid):
		return fmt.Errorf("%w: identity %d", ErrNotAPlayer, playerID)
	case errors.Is(err, repositories.ErrMembershipTeamInvalid):
		return fmt.Errorf("%w: %d", ErrTeamNotFound, teamID)
	}
	return fmt.Errorf("failed to save membership: %w", err)
}
