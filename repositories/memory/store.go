// Package memory is an in-process implementation of repositories.Store. It
// enforces the same uniqueness, reference and check rules as the PostgreSQL
// schema and returns the same sentinel errors.
package memory

import (
	"context"
	"sync"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
)

type membershipKey struct {
	teamID   int
	playerID int
}

type registrationKey struct {
	tournamentID int
	teamID       int
}

type state struct {
	identities    map[int]models.Identity
	profiles      map[int]models.RoleProfile
	teams         map[int]models.Team
	memberships   map[membershipKey]models.TeamMembership
	tournaments   map[int]models.Tournament
	registrations map[registrationKey]models.TournamentRegistration
	matches       map[int]models.Match
	payments      map[int]models.Payment

	lastIdentityID   int
	lastTeamID       int
	lastTournamentID int
	lastMatchID      int
	lastPaymentID    int
}

func newState() *state {
	return &state{
		identities:    make(map[int]models.Identity),
		profiles:      make(map[int]models.RoleProfile),
		teams:         make(map[int]models.Team),
		memberships:   make(map[membershipKey]models.TeamMembership),
		tournaments:   make(map[int]models.Tournament),
		registrations: make(map[registrationKey]models.TournamentRegistration),
		matches:       make(map[int]models.Match),
		payments:      make(map[int]models.Payment),
	}
}

// clone copies every table. Stored values are never mutated in place, so
// copying the struct values is enough.
func (s *state) clone() *state {
	c := *s
	c.identities = cloneMap(s.identities)
	c.profiles = cloneMap(s.profiles)
	c.teams = cloneMap(s.teams)
	c.memberships = cloneMap(s.memberships)
	c.tournaments = cloneMap(s.tournaments)
	c.registrations = cloneMap(s.registrations)
	c.matches = cloneMap(s.matches)
	c.payments = cloneMap(s.payments)
	return &c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Store serializes units of work behind a single mutex. Each unit of work
// runs against a private copy of the state which replaces the shared state
// only when the unit of work succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
	clock clock.Clock
}

var _ repositories.Store = (*Store)(nil)

func NewStore(clk clock.Clock) *Store {
	return &Store{state: newState(), clock: clk}
}

func (s *Store) WithinTx(ctx context.Context, fn repositories.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, work.repositories(s.clock)); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *state) repositories(clk clock.Clock) repositories.Repositories {
	return repositories.Repositories{
		Identities:    &identityRepository{st: s, clock: clk},
		Profiles:      &profileRepository{st: s, clock: clk},
		Teams:         &teamRepository{st: s, clock: clk},
		Rosters:       &rosterRepository{st: s, clock: clk},
		Tournaments:   &tournamentRepository{st: s, clock: clk},
		Registrations: &registrationRepository{st: s, clock: clk},
		Matches:       &matchRepository{st: s, clock: clk},
		Payments:      &paymentRepository{st: s, clock: clk},
	}
}

func (s *state) hasProfile(identityID int, role models.Role) bool {
	p, ok := s.profiles[identityID]
	return ok && p.Role == role
}
