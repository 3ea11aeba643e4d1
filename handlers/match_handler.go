package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/services"
)

// MatchService is the part of the match service the handler drives.
type MatchService interface {
	Schedule(ctx context.Context, input services.ScheduleMatchInput) (*models.Match, error)
	AssignReferee(ctx context.Context, matchID, refereeID int) (*models.Match, error)
	RecordScore(ctx context.Context, matchID, score1, score2 int) (*models.Match, error)
	Transition(ctx context.Context, matchID int, event models.MatchEvent, rescheduleAt *time.Time) (*models.Match, error)
	Get(ctx context.Context, matchID int) (*models.Match, error)
	List(ctx context.Context, tournamentID int) ([]models.Match, error)
}

var _ MatchService = (*services.MatchService)(nil)

type MatchHandler struct {
	matchService MatchService
}

func NewMatchHandler(ms MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

type assignRefereeRequest struct {
	RefereeID int `json:"referee_id"`
}

type recordScoreRequest struct {
	Score1 *int `json:"score1"`
	Score2 *int `json:"score2"`
}

type matchTransitionRequest struct {
	Event        string     `json:"event"`
	RescheduleAt *time.Time `json:"reschedule_at,omitempty"`
}

func (h *MatchHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.ScheduleMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.TournamentID = tournamentID

	match, err := h.matchService.Schedule(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.List(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Get(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) AssignReferee(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req assignRefereeRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if req.RefereeID <= 0 {
		badRequestResponse(w, r, errors.New("referee_id is required"))
		return
	}

	match, err := h.matchService.AssignReferee(r.Context(), matchID, req.RefereeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) RecordScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req recordScoreRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if req.Score1 == nil || req.Score2 == nil {
		badRequestResponse(w, r, errors.New("score1 and score2 are required"))
		return
	}

	match, err := h.matchService.RecordScore(r.Context(), matchID, *req.Score1, *req.Score2)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Transition(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req matchTransitionRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if req.Event == "" {
		badRequestResponse(w, r, errors.New("event is required"))
		return
	}

	match, err := h.matchService.Transition(r.Context(), matchID, models.MatchEvent(req.Event), req.RescheduleAt)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
