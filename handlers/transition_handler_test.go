package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type stubTournamentService struct {
	TournamentService
	events []models.TournamentEvent
	err    error
}

func (s *stubTournamentService) Transition(_ context.Context, id int, event models.TournamentEvent) (*models.Tournament, error) {
	s.events = append(s.events, event)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Tournament{ID: id, Status: models.TournamentInProgress}, nil
}

type stubMatchService struct {
	MatchService
	events []models.MatchEvent
	err    error
}

func (s *stubMatchService) Transition(_ context.Context, matchID int, event models.MatchEvent, _ *time.Time) (*models.Match, error) {
	s.events = append(s.events, event)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Match{ID: matchID, Status: models.MatchInProgress}, nil
}

func transitionRequestFor(param, body string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(param, "7")
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestTournamentTransitionHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		want       int
		wantCalls  int
	}{
		{"applied", `{"event":"start"}`, nil, http.StatusOK, 1},
		{"missing event", `{}`, nil, http.StatusBadRequest, 0},
		{"unknown event", `{"event":"resume"}`, fmt.Errorf("%w: unknown tournament event", services.ErrValidation), http.StatusBadRequest, 1},
		{"edge missing", `{"event":"finish"}`, fmt.Errorf("%w: cannot finish from planned", services.ErrInvalidTransition), http.StatusConflict, 1},
		{"not found", `{"event":"start"}`, fmt.Errorf("%w: 7", services.ErrTournamentNotFound), http.StatusNotFound, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubTournamentService{err: tt.serviceErr}
			rec := httptest.NewRecorder()
			NewTournamentHandler(stub).Transition(rec, transitionRequestFor("tournamentID", tt.body))
			assert.Equal(t, tt.want, rec.Code)
			assert.Len(t, stub.events, tt.wantCalls)
		})
	}
}

func TestMatchTransitionHandler(t *testing.T) {
	tests := []struct {
		name       string
		event      models.MatchEvent
		serviceErr error
		want       int
	}{
		{"applied", models.MatchStart, nil, http.StatusOK},
		{"unknown event", "resume", fmt.Errorf("%w: unknown match event", services.ErrValidation), http.StatusBadRequest},
		{"lost race", models.MatchStart, fmt.Errorf("%w: status changed concurrently", services.ErrInvalidTransition), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubMatchService{err: tt.serviceErr}
			rec := httptest.NewRecorder()
			body := fmt.Sprintf(`{"event":%q}`, tt.event)
			NewMatchHandler(stub).Transition(rec, transitionRequestFor("matchID", body))
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, []models.MatchEvent{tt.event}, stub.events)
		})
	}
}
