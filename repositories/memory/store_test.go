package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	return NewStore(clock.NewMock(epoch))
}

func seedIdentity(t *testing.T, ctx context.Context, repos repositories.Repositories, email string, role models.Role) *models.Identity {
	t.Helper()
	identity := &models.Identity{Email: email, DisplayName: email, Role: role}
	require.NoError(t, repos.Identities.Create(ctx, identity))
	require.NoError(t, repos.Profiles.Create(ctx, models.NewRoleProfile(identity, role, models.ProfileDefaults{})))
	return identity
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		seedIdentity(t, ctx, repos, "a@example.com", models.RolePlayer)
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		_, err := repos.Identities.GetByEmail(ctx, "a@example.com")
		return err
	})
	assert.ErrorIs(t, err, repositories.ErrIdentityNotFound)
}

func TestWithinTxHonoursCancelledContext(t *testing.T) {
	store := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithinTx(ctx, func(context.Context, repositories.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestIdentityConstraints(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		ref := "ext-1"
		first := &models.Identity{Email: "a@example.com", DisplayName: "a", Role: models.RolePlayer, ExternalRef: &ref}
		require.NoError(t, repos.Identities.Create(ctx, first))
		assert.Equal(t, epoch, first.CreatedAt)

		dupEmail := &models.Identity{Email: "a@example.com", DisplayName: "a", Role: models.RolePlayer}
		assert.ErrorIs(t, repos.Identities.Create(ctx, dupEmail), repositories.ErrIdentityEmailConflict)

		dupRef := &models.Identity{Email: "b@example.com", DisplayName: "b", Role: models.RolePlayer, ExternalRef: &ref}
		assert.ErrorIs(t, repos.Identities.Create(ctx, dupRef), repositories.ErrIdentityExternalRefConflict)

		assert.ErrorIs(t, repos.Identities.SetExternalRef(ctx, first.ID, "ext-2"), repositories.ErrExternalRefAlreadySet)

		// профиль должен соответствовать роли
		wrong := models.NewRoleProfile(first, models.RoleReferee, models.ProfileDefaults{})
		assert.ErrorIs(t, repos.Profiles.Create(ctx, wrong), repositories.ErrProfileRoleMismatch)

		profile := models.NewRoleProfile(first, models.RolePlayer, models.ProfileDefaults{})
		require.NoError(t, repos.Profiles.Create(ctx, profile))
		assert.ErrorIs(t, repos.Profiles.Create(ctx, profile), repositories.ErrProfileConflict)
		return nil
	})
	require.NoError(t, err)
}

func TestRosterAndRegistrationConstraints(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		organizer := seedIdentity(t, ctx, repos, "org@example.com", models.RoleOrganizer)
		player := seedIdentity(t, ctx, repos, "p@example.com", models.RolePlayer)
		referee := seedIdentity(t, ctx, repos, "ref@example.com", models.RoleReferee)

		team := &models.Team{Name: "Lions", Slug: "lions", OrganizerID: organizer.ID}
		require.NoError(t, repos.Teams.Create(ctx, team))
		assert.ErrorIs(t, repos.Teams.Create(ctx, &models.Team{Name: "Lions", Slug: "lions-2", OrganizerID: organizer.ID}), repositories.ErrTeamNameConflict)
		assert.ErrorIs(t, repos.Teams.Create(ctx, &models.Team{Name: "Tigers", Slug: "tigers", OrganizerID: player.ID}), repositories.ErrTeamOrganizerInvalid)

		membership := &models.TeamMembership{TeamID: team.ID, PlayerID: player.ID, RoleInTeam: models.TeamRoleCaptain}
		require.NoError(t, repos.Rosters.Add(ctx, membership))
		assert.True(t, membership.Active)
		assert.ErrorIs(t, repos.Rosters.Add(ctx, membership), repositories.ErrMembershipConflict)
		assert.ErrorIs(t, repos.Rosters.Add(ctx, &models.TeamMembership{TeamID: team.ID, PlayerID: referee.ID}), repositories.ErrMembershipPlayerInvalid)

		require.NoError(t, repos.Rosters.Deactivate(ctx, team.ID, player.ID))
		active, err := repos.Rosters.ListByTeam(ctx, team.ID, false)
		require.NoError(t, err)
		assert.Empty(t, active)
		all, err := repos.Rosters.ListByTeam(ctx, team.ID, true)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		tournament := &models.Tournament{
			Name: "Cup", Format: models.FormatSingleElimination, Status: models.TournamentPlanned,
			StartTime: epoch.Add(time.Hour), EndTime: epoch, OrganizerID: organizer.ID, MaxTeams: 4,
		}
		assert.ErrorIs(t, repos.Tournaments.Create(ctx, tournament), repositories.ErrTournamentDatesInvalid)
		tournament.EndTime = epoch.Add(48 * time.Hour)
		require.NoError(t, repos.Tournaments.Create(ctx, tournament))

		reg := &models.TournamentRegistration{TournamentID: tournament.ID, TeamID: team.ID}
		require.NoError(t, repos.Registrations.Add(ctx, reg))
		assert.ErrorIs(t, repos.Registrations.Add(ctx, reg), repositories.ErrRegistrationConflict)

		loaded, err := repos.Tournaments.GetByID(ctx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.RegisteredTeams)

		assert.ErrorIs(t, repos.Tournaments.UpdateStatus(ctx, tournament.ID, models.TournamentInProgress, models.TournamentFinished), repositories.ErrStaleStatus)
		return nil
	})
	require.NoError(t, err)
}

func TestMatchConstraints(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		organizer := seedIdentity(t, ctx, repos, "org@example.com", models.RoleOrganizer)
		player := seedIdentity(t, ctx, repos, "p@example.com", models.RolePlayer)
		a := &models.Team{Name: "A", Slug: "a", OrganizerID: organizer.ID}
		b := &models.Team{Name: "B", Slug: "b", OrganizerID: organizer.ID}
		require.NoError(t, repos.Teams.Create(ctx, a))
		require.NoError(t, repos.Teams.Create(ctx, b))
		tournament := &models.Tournament{
			Name: "Cup", Format: models.FormatRoundRobin, Status: models.TournamentPlanned,
			StartTime: epoch, EndTime: epoch.Add(time.Hour), OrganizerID: organizer.ID, MaxTeams: 2,
		}
		require.NoError(t, repos.Tournaments.Create(ctx, tournament))
		require.NoError(t, repos.Registrations.Add(ctx, &models.TournamentRegistration{TournamentID: tournament.ID, TeamID: a.ID}))

		same := &models.Match{TournamentID: tournament.ID, Team1ID: a.ID, Team2ID: a.ID, ScheduledAt: epoch, Status: models.MatchPlanned}
		assert.ErrorIs(t, repos.Matches.Create(ctx, same), repositories.ErrMatchSameTeam)

		unregistered := &models.Match{TournamentID: tournament.ID, Team1ID: a.ID, Team2ID: b.ID, ScheduledAt: epoch, Status: models.MatchPlanned}
		assert.ErrorIs(t, repos.Matches.Create(ctx, unregistered), repositories.ErrMatchTeamNotRegistered)

		require.NoError(t, repos.Registrations.Add(ctx, &models.TournamentRegistration{TournamentID: tournament.ID, TeamID: b.ID}))
		require.NoError(t, repos.Matches.Create(ctx, unregistered))

		assert.ErrorIs(t, repos.Matches.SetReferee(ctx, unregistered.ID, player.ID), repositories.ErrMatchRefereeInvalid)
		return nil
	})
	require.NoError(t, err)
}

func TestIdentityDeleteRules(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		organizer := seedIdentity(t, ctx, repos, "org@example.com", models.RoleOrganizer)
		payer := seedIdentity(t, ctx, repos, "payer@example.com", models.RolePlayer)
		member := seedIdentity(t, ctx, repos, "member@example.com", models.RolePlayer)

		team := &models.Team{Name: "A", Slug: "a", OrganizerID: organizer.ID}
		require.NoError(t, repos.Teams.Create(ctx, team))
		require.NoError(t, repos.Rosters.Add(ctx, &models.TeamMembership{TeamID: team.ID, PlayerID: member.ID, RoleInTeam: models.TeamRoleMember}))
		require.NoError(t, repos.Payments.Create(ctx, &models.Payment{PlayerID: payer.ID, AmountCents: 500, Method: models.PaymentCard, Status: models.PaymentPending}))

		assert.ErrorIs(t, repos.Identities.Delete(ctx, organizer.ID), repositories.ErrReferenceProtected)
		assert.ErrorIs(t, repos.Identities.Delete(ctx, payer.ID), repositories.ErrReferenceProtected)

		require.NoError(t, repos.Identities.Delete(ctx, member.ID))
		_, err := repos.Profiles.GetByIdentityID(ctx, member.ID)
		assert.ErrorIs(t, err, repositories.ErrProfileNotFound)
		_, err = repos.Rosters.Get(ctx, team.ID, member.ID)
		assert.ErrorIs(t, err, repositories.ErrMembershipNotFound)

		assert.ErrorIs(t, repos.Identities.Delete(ctx, member.ID), repositories.ErrIdentityNotFound)
		return nil
	})
	require.NoError(t, err)
}
