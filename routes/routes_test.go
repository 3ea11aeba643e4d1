package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/tournament-core/clock"
	"github.com/Dosada05/tournament-core/handlers"
	"github.com/Dosada05/tournament-core/live"
	"github.com/Dosada05/tournament-core/metrics"
	"github.com/Dosada05/tournament-core/middleware"
	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/repositories/memory"
	"github.com/Dosada05/tournament-core/services"
	"github.com/Dosada05/tournament-core/utils"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret       = "routes-test-secret"
	testServiceToken = "sync-token"
)

type testServer struct {
	*httptest.Server
	identities *services.IdentityService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	utils.BcryptCost = bcrypt.MinCost
	t.Cleanup(func() { utils.BcryptCost = bcrypt.DefaultCost })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.New()
	store := memory.NewStore(clk)
	hub := live.NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()

	identityService := services.NewIdentityService(store, logger)
	tournamentService := services.NewTournamentService(store, clk, logger)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Auth:       handlers.NewAuthHandler(services.NewAuthService(store, logger), clk, testSecret, time.Hour),
		Identity:   handlers.NewIdentityHandler(identityService, services.NewProfileService(store, logger)),
		Team:       handlers.NewTeamHandler(services.NewRosterService(store, nil, logger)),
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Match:      handlers.NewMatchHandler(services.NewMatchService(store, hub, logger)),
		Payment:    handlers.NewPaymentHandler(services.NewPaymentService(store, logger)),
		WebSocket:  handlers.NewWebSocketHandler(hub, tournamentService, nil),
	}, Options{
		JWTSecret:        testSecret,
		SyncServiceToken: testServiceToken,
		CORSOrigins:      []string{"*"},
		Gatherer:         registry,
		Logger:           logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testServer{Server: srv, identities: identityService}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	if len(bytes.TrimSpace(raw)) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// register creates a password account and returns its id and token.
func (s *testServer) register(t *testing.T, email string, role models.Role) (int, string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email":    email,
		"password": "long-enough",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	identity := body["identity"].(map[string]interface{})
	return int(identity["id"].(float64)), body["token"].(string)
}

func (s *testServer) uploadLogo(t *testing.T, teamID int, token string) int {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="logo"; filename="logo.png"`)
	header.Set("Content-Type", "image/png")
	part, err := form.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/api/teams/%d/logo", s.URL, teamID), &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func nested(t *testing.T, body map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	value, ok := body[key].(map[string]interface{})
	require.True(t, ok, "missing %q in %v", key, body)
	return value
}

func idOf(t *testing.T, body map[string]interface{}, key string) int {
	t.Helper()
	return int(nested(t, body, key)["id"].(float64))
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// счётчик должен появиться в выдаче после первого события
	status, _ := srv.do(t, http.MethodPost, "/api/identities/sync", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/identities/sync", strings.NewReader(`{"externalId":"e","email":"m@example.com"}`))
	req.Header.Set(middleware.ServiceTokenHeader, testServiceToken)
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "tournament_identity_syncs_total")
}

func TestIdentitySyncEndpoint(t *testing.T) {
	srv := newTestServer(t)

	sync := func(token string, body string) (int, map[string]interface{}) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/identities/sync", strings.NewReader(body))
		require.NoError(t, err)
		if token != "" {
			req.Header.Set(middleware.ServiceTokenHeader, token)
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var decoded map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
		return resp.StatusCode, decoded
	}

	payload := `{"externalId":"auth0|1","email":"sam@example.com","role":"referee"}`

	status, _ := sync("", payload)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = sync("wrong", payload)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := sync(testServiceToken, payload)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["created"])
	firstID := body["identityId"]

	status, body = sync(testServiceToken, payload)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["created"])
	assert.Equal(t, firstID, body["identityId"])

	status, _ = sync(testServiceToken, `{"externalId":"auth0|1","email":"sam@example.com","role":"player"}`)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = sync(testServiceToken, `{"externalId":"auth0|2","email":"sam@example.com"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = sync(testServiceToken, `{"externalId":"auth0|3","email":"broken"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = sync(testServiceToken, `{"externalId":"auth0|3","email":"x@example.com","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	id, token := srv.register(t, "pat@example.com", models.RolePlayer)

	status, body := srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "pat@example.com", "password": "long-enough"})
	assert.Equal(t, http.StatusConflict, status, "body: %v", body)

	status, _ = srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "root@example.com", "password": "long-enough", "role": "administrator"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "pat@example.com", "password": "long-enough"})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	status, _ = srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "pat@example.com", "password": "not-the-password"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = srv.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(id), nested(t, body, "identity")["id"])
	assert.Equal(t, "player", nested(t, body, "profile")["role"])

	status, _ = srv.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = srv.do(t, http.MethodGet, "/api/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTournamentWorkflow(t *testing.T) {
	srv := newTestServer(t)

	orgID, orgToken := srv.register(t, "org@example.com", models.RoleOrganizer)
	playerID, playerToken := srv.register(t, "player@example.com", models.RolePlayer)
	refereeID, refereeToken := srv.register(t, "ref@example.com", models.RoleReferee)

	// команды может создавать только организатор
	status, _ := srv.do(t, http.MethodPost, "/api/teams", playerToken, map[string]string{"name": "Lions"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := srv.do(t, http.MethodPost, "/api/teams", orgToken, map[string]string{"name": "Lions"})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	lionsID := idOf(t, body, "team")
	assert.Equal(t, float64(orgID), nested(t, body, "team")["organizer_id"])

	status, _ = srv.do(t, http.MethodPost, "/api/teams", orgToken, map[string]string{"name": "Lions"})
	assert.Equal(t, http.StatusConflict, status)

	status, body = srv.do(t, http.MethodPost, "/api/teams", orgToken, map[string]string{"name": "Tigers"})
	require.Equal(t, http.StatusCreated, status)
	tigersID := idOf(t, body, "team")

	status, _ = srv.do(t, http.MethodPost, fmt.Sprintf("/api/teams/%d/members", lionsID), orgToken, map[string]interface{}{"player_id": playerID, "role_in_team": "captain"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = srv.do(t, http.MethodPost, fmt.Sprintf("/api/teams/%d/members", lionsID), orgToken, map[string]interface{}{"player_id": refereeID})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = srv.do(t, http.MethodGet, fmt.Sprintf("/api/teams/%d/members", lionsID), playerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["members"], 1)

	status, _ = srv.do(t, http.MethodGet, "/api/teams/999", playerToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = srv.do(t, http.MethodGet, "/api/teams/abc", playerToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = srv.do(t, http.MethodPut, fmt.Sprintf("/api/teams/%d/logo", lionsID), orgToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	// без R2 загрузка логотипов отключена
	assert.Equal(t, http.StatusServiceUnavailable, srv.uploadLogo(t, lionsID, orgToken))

	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	status, body = srv.do(t, http.MethodPost, "/api/tournaments", orgToken, map[string]interface{}{
		"name":       "Cup",
		"format":     "round_robin",
		"start_time": start,
		"end_time":   start.Add(-time.Minute),
		"max_teams":  4,
	})
	assert.Equal(t, http.StatusBadRequest, status, "body: %v", body)

	status, body = srv.do(t, http.MethodPost, "/api/tournaments", orgToken, map[string]interface{}{
		"name":       "Cup",
		"format":     "round_robin",
		"start_time": start,
		"end_time":   start.Add(24 * time.Hour),
		"max_teams":  4,
	})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	tournamentID := idOf(t, body, "tournament")
	tournamentPath := fmt.Sprintf("/api/tournaments/%d", tournamentID)

	status, _ = srv.do(t, http.MethodPost, tournamentPath+"/transitions", orgToken, map[string]string{"event": "start"})
	assert.Equal(t, http.StatusConflict, status, "start without registered teams")
	status, _ = srv.do(t, http.MethodPost, tournamentPath+"/transitions", orgToken, map[string]string{"event": "resume"})
	assert.Equal(t, http.StatusBadRequest, status, "unknown event")

	for _, teamID := range []int{lionsID, tigersID} {
		status, body = srv.do(t, http.MethodPost, tournamentPath+"/registrations", orgToken, map[string]int{"team_id": teamID})
		require.Equal(t, http.StatusCreated, status, "body: %v", body)
	}
	status, _ = srv.do(t, http.MethodPost, tournamentPath+"/registrations", orgToken, map[string]int{"team_id": lionsID})
	assert.Equal(t, http.StatusConflict, status)

	status, body = srv.do(t, http.MethodGet, "/api/tournaments?status=planned", playerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["tournaments"], 1)
	status, _ = srv.do(t, http.MethodGet, "/api/tournaments?limit=abc", playerToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = srv.do(t, http.MethodPost, tournamentPath+"/matches", orgToken, map[string]interface{}{
		"team1_id": lionsID, "team2_id": lionsID, "scheduled_at": start,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = srv.do(t, http.MethodPost, tournamentPath+"/matches", orgToken, map[string]interface{}{
		"team1_id": lionsID, "team2_id": tigersID, "scheduled_at": start.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	assert.Equal(t, "Lions vs Tigers", nested(t, body, "match")["name"])
	matchPath := fmt.Sprintf("/api/matches/%d", idOf(t, body, "match"))

	status, _ = srv.do(t, http.MethodPut, matchPath+"/referee", orgToken, map[string]int{"referee_id": refereeID})
	require.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodPut, matchPath+"/score", refereeToken, map[string]int{"score1": 1, "score2": 0})
	assert.Equal(t, http.StatusConflict, status, "score before the match starts")

	status, _ = srv.do(t, http.MethodPost, matchPath+"/transitions", refereeToken, map[string]string{"event": "resume"})
	assert.Equal(t, http.StatusBadRequest, status, "unknown event")
	status, _ = srv.do(t, http.MethodPost, matchPath+"/transitions", refereeToken, map[string]string{"event": "start"})
	require.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodPut, matchPath+"/score", refereeToken, map[string]int{"score1": 1})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = srv.do(t, http.MethodPut, matchPath+"/score", playerToken, map[string]int{"score1": 1, "score2": 0})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = srv.do(t, http.MethodPut, matchPath+"/score", refereeToken, map[string]int{"score1": 3, "score2": 2})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), nested(t, body, "match")["score1"])

	status, body = srv.do(t, http.MethodPost, tournamentPath+"/transitions", orgToken, map[string]string{"event": "start"})
	require.Equal(t, http.StatusOK, status, "body: %v", body)
	assert.Equal(t, "in_progress", nested(t, body, "tournament")["status"])

	status, _ = srv.do(t, http.MethodPost, tournamentPath+"/transitions", orgToken, map[string]string{"event": "finish"})
	assert.Equal(t, http.StatusConflict, status, "finish before end time")

	status, body = srv.do(t, http.MethodGet, tournamentPath+"/matches", playerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["matches"], 1)
}

func TestPaymentEndpoints(t *testing.T) {
	srv := newTestServer(t)

	playerID, playerToken := srv.register(t, "player@example.com", models.RolePlayer)
	_, organizerToken := srv.register(t, "org@example.com", models.RoleOrganizer)

	admin := models.RoleAdministrator
	result, err := srv.identities.Sync(context.Background(), services.SyncInput{ExternalID: "admin-1", Email: "admin@example.com", Role: &admin})
	require.NoError(t, err)
	adminToken, err := middleware.IssueToken(testSecret, result.Identity, time.Hour, time.Now())
	require.NoError(t, err)

	status, _ := srv.do(t, http.MethodPost, "/api/payments", organizerToken, map[string]interface{}{"amount_cents": 100, "method": "card"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, http.MethodPost, "/api/payments", playerToken, map[string]interface{}{"amount_cents": -5, "method": "card"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := srv.do(t, http.MethodPost, "/api/payments", playerToken, map[string]interface{}{"amount_cents": 1999, "method": "card"})
	require.Equal(t, http.StatusCreated, status, "body: %v", body)
	payment := nested(t, body, "payment")
	assert.Equal(t, "pending", payment["status"])
	paymentPath := fmt.Sprintf("/api/payments/%d", int(payment["id"].(float64)))

	status, _ = srv.do(t, http.MethodPost, paymentPath+"/paid", playerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = srv.do(t, http.MethodPost, paymentPath+"/paid", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paid", nested(t, body, "payment")["status"])

	status, _ = srv.do(t, http.MethodPost, paymentPath+"/refused", adminToken, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = srv.do(t, http.MethodPost, "/api/payments/999/paid", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = srv.do(t, http.MethodGet, "/api/payments", playerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["payments"], 1)

	// игрок с платежами не удаляется
	status, _ = srv.do(t, http.MethodDelete, fmt.Sprintf("/api/identities/%d", playerID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = srv.do(t, http.MethodDelete, fmt.Sprintf("/api/identities/%d", playerID), playerToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestLiveFeed(t *testing.T) {
	srv := newTestServer(t)
	_, orgToken := srv.register(t, "org@example.com", models.RoleOrganizer)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/ws/tournaments/77", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var teamIDs []int
	for _, name := range []string{"Lions", "Tigers"} {
		status, body := srv.do(t, http.MethodPost, "/api/teams", orgToken, map[string]string{"name": name})
		require.Equal(t, http.StatusCreated, status)
		teamIDs = append(teamIDs, idOf(t, body, "team"))
	}
	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	status, body := srv.do(t, http.MethodPost, "/api/tournaments", orgToken, map[string]interface{}{
		"name": "Live Cup", "format": "mixed", "start_time": start, "end_time": start.Add(time.Hour), "max_teams": 2,
	})
	require.Equal(t, http.StatusCreated, status)
	tournamentID := idOf(t, body, "tournament")
	for _, teamID := range teamIDs {
		status, _ = srv.do(t, http.MethodPost, fmt.Sprintf("/api/tournaments/%d/registrations", tournamentID), orgToken, map[string]int{"team_id": teamID})
		require.Equal(t, http.StatusCreated, status)
	}

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/ws/tournaments/%d", wsURL, tournamentID), nil)
	require.NoError(t, err)
	defer conn.Close()

	// подписка регистрируется асинхронно, поэтому планируем матчи, пока не придёт событие
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	received := make(chan live.Message, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(received)
			return
		}
		var msg live.Message
		if json.Unmarshal(data, &msg) == nil {
			received <- msg
		}
		close(received)
	}()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		status, _ = srv.do(t, http.MethodPost, fmt.Sprintf("/api/tournaments/%d/matches", tournamentID), orgToken, map[string]interface{}{
			"team1_id": teamIDs[0], "team2_id": teamIDs[1], "scheduled_at": start,
		})
		require.Equal(t, http.StatusCreated, status)

		select {
		case msg, ok := <-received:
			require.True(t, ok, "websocket closed before an event arrived")
			assert.Equal(t, services.EventMatchScheduled, msg.Type)
			assert.Equal(t, live.RoomForTournament(tournamentID), msg.RoomID)
			return
		case <-ticker.C:
		}
	}
}
