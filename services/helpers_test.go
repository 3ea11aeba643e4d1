package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories"
	"github.com/Dosada05/tournament-core/repositories/memory"
	"github.com/Dosada05/tournament-core/storage"
	"github.com/Dosada05/tournament-core/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	utils.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

var testEpoch = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store       repositories.Store
	clock       *clock.MockClock
	uploader    *fakeUploader
	events      *recordingPublisher
	identities  *IdentityService
	profiles    *ProfileService
	auth        *AuthService
	rosters     *RosterService
	tournaments *TournamentService
	matches     *MatchService
	payments    *PaymentService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clk := clock.NewMock(testEpoch)
	return newTestEnvWithStore(t, memory.NewStore(clk), clk)
}

func newTestEnvWithStore(t *testing.T, store repositories.Store, clk *clock.MockClock) *testEnv {
	t.Helper()
	logger := discardLogger()
	uploader := newFakeUploader()
	events := &recordingPublisher{}
	return &testEnv{
		store:       store,
		clock:       clk,
		uploader:    uploader,
		events:      events,
		identities:  NewIdentityService(store, logger),
		profiles:    NewProfileService(store, logger),
		auth:        NewAuthService(store, logger),
		rosters:     NewRosterService(store, uploader, logger),
		tournaments: NewTournamentService(store, clk, logger),
		matches:     NewMatchService(store, events, logger),
		payments:    NewPaymentService(store, logger),
	}
}

// identity provisions an identity with its role profile.
func (e *testEnv) identity(t *testing.T, email string, role models.Role) *models.Identity {
	t.Helper()
	result, err := e.identities.Sync(context.Background(), SyncInput{
		ExternalID: "ext-" + email,
		Email:      email,
		Role:       &role,
	})
	require.NoError(t, err)
	require.True(t, result.Created)
	return result.Identity
}

func (e *testEnv) team(t *testing.T, organizerID int, name string) *models.Team {
	t.Helper()
	team, err := e.rosters.CreateTeam(context.Background(), organizerID, name)
	require.NoError(t, err)
	return team
}

// tournament creates a planned tournament starting one day after the
// current mock time and lasting two days.
func (e *testEnv) tournament(t *testing.T, organizerID, maxTeams int) *models.Tournament {
	t.Helper()
	start := e.clock.Now().Add(24 * time.Hour)
	tournament, err := e.tournaments.Create(context.Background(), CreateTournamentInput{
		OrganizerID: organizerID,
		Name:        "Spring Cup",
		Format:      models.FormatSingleElimination,
		StartTime:   start,
		EndTime:     start.Add(48 * time.Hour),
		MaxTeams:    maxTeams,
	})
	require.NoError(t, err)
	return tournament
}

func (e *testEnv) register(t *testing.T, tournamentID int, teamIDs ...int) {
	t.Helper()
	for _, teamID := range teamIDs {
		_, err := e.tournaments.RegisterTeam(context.Background(), tournamentID, teamID)
		require.NoError(t, err)
	}
}

type publishedEvent struct {
	TournamentID int
	Type         string
	Payload      interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(tournamentID int, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{TournamentID: tournamentID, Type: eventType, Payload: payload})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type fakeUploader struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

var _ storage.FileUploader = (*fakeUploader)(nil)

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, reader io.Reader) (*storage.UploadResult, error) {
	if u.uploadErr != nil {
		return nil, u.uploadErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = buf.Bytes()
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.objects[key]; !ok {
		return errors.New("no such object")
	}
	delete(u.objects, key)
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

// staleReadStore makes the next n email lookups miss, which reproduces a
// caller losing the race between its read and its insert.
type staleReadStore struct {
	repositories.Store
	mu         sync.Mutex
	staleReads int
}

func (s *staleReadStore) missNextReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleReads = n
}

func (s *staleReadStore) WithinTx(ctx context.Context, fn repositories.TxFunc) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		s.mu.Lock()
		stale := s.staleReads > 0
		if stale {
			s.staleReads--
		}
		s.mu.Unlock()

		if stale {
			repos.Identities = staleIdentities{repos.Identities}
		}
		return fn(ctx, repos)
	})
}

type staleIdentities struct {
	repositories.IdentityRepository
}

func (staleIdentities) GetByEmail(context.Context, string) (*models.Identity, error) {
	return nil, repositories.ErrIdentityNotFound
}

// lockSnapshotStore hands out tournaments whose RegisteredTeams is frozen at
// zero, the way a locking read sees a snapshot taken before it waited.
type lockSnapshotStore struct {
	repositories.Store
}

func (s lockSnapshotStore) WithinTx(ctx context.Context, fn repositories.TxFunc) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		repos.Tournaments = snapshotTournaments{repos.Tournaments}
		return fn(ctx, repos)
	})
}

type snapshotTournaments struct {
	repositories.TournamentRepository
}

func (r snapshotTournaments) GetByIDForUpdate(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := r.TournamentRepository.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	t.RegisteredTeams = 0
	return t, nil
}

// concurrentStatusStore moves a row to another status right before the next
// status write lands, so the compare-and-set sees a source state that is no
// longer current.
type concurrentStatusStore struct {
	repositories.Store
	mu    sync.Mutex
	armed bool
}

func (s *concurrentStatusStore) advanceBeforeNextWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
}

func (s *concurrentStatusStore) take() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	armed := s.armed
	s.armed = false
	return armed
}

func (s *concurrentStatusStore) WithinTx(ctx context.Context, fn repositories.TxFunc) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		repos.Tournaments = racingTournaments{repos.Tournaments, s}
		repos.Matches = racingMatches{repos.Matches, s}
		repos.Payments = racingPayments{repos.Payments, s}
		return fn(ctx, repos)
	})
}

type racingTournaments struct {
	repositories.TournamentRepository
	store *concurrentStatusStore
}

func (r racingTournaments) UpdateStatus(ctx context.Context, id int, from, to models.TournamentStatus) error {
	if r.store.take() {
		if err := r.TournamentRepository.UpdateStatus(ctx, id, from, models.TournamentCancelled); err != nil {
			return err
		}
	}
	return r.TournamentRepository.UpdateStatus(ctx, id, from, to)
}

type racingMatches struct {
	repositories.MatchRepository
	store *concurrentStatusStore
}

func (r racingMatches) UpdateStatus(ctx context.Context, id int, from, to models.MatchStatus) error {
	if r.store.take() {
		if err := r.MatchRepository.UpdateStatus(ctx, id, from, models.MatchCancelled); err != nil {
			return err
		}
	}
	return r.MatchRepository.UpdateStatus(ctx, id, from, to)
}

type racingPayments struct {
	repositories.PaymentRepository
	store *concurrentStatusStore
}

func (r racingPayments) UpdateStatus(ctx context.Context, id int, from, to models.PaymentStatus) error {
	if r.store.take() {
		if err := r.PaymentRepository.UpdateStatus(ctx, id, from, models.PaymentRefused); err != nil {
			return err
		}
	}
	return r.PaymentRepository.UpdateStatus(ctx, id, from, to)
}
