package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/services"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(ps *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: ps}
}

// Record books a payment for the calling player.
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	var input services.RecordPaymentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	playerID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	input.PlayerID = playerID

	payment, err := h.paymentService.Record(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"payment": payment}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PaymentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	playerID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	payments, err := h.paymentService.ListByPlayer(r.Context(), playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"payments": payments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PaymentHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.paymentService.MarkPaid)
}

func (h *PaymentHandler) MarkRefused(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.paymentService.MarkRefused)
}

func (h *PaymentHandler) MarkRefunded(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.paymentService.MarkRefunded)
}

func (h *PaymentHandler) mark(w http.ResponseWriter, r *http.Request, apply func(context.Context, int) (*models.Payment, error)) {
	paymentID, err := getIDFromURL(r, "paymentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	payment, err := apply(r.Context(), paymentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"payment": payment}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
