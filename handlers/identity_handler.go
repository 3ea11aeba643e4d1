package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/services"
)

type IdentityHandler struct {
	identityService *services.IdentityService
	profileService  *services.ProfileService
}

func NewIdentityHandler(is *services.IdentityService, ps *services.ProfileService) *IdentityHandler {
	return &IdentityHandler{identityService: is, profileService: ps}
}

type syncRequest struct {
	ExternalID  string       `json:"externalId"`
	Email       string       `json:"email"`
	DisplayName *string      `json:"displayName,omitempty"`
	Role        *models.Role `json:"role,omitempty"`
}

// Sync is called by the external authentication provider after it has
// verified an account. Repeated calls are harmless.
func (h *IdentityHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.identityService.Sync(r.Context(), services.SyncInput{
		ExternalID:  req.ExternalID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response := jsonResponse{
		"identityId": result.Identity.ID,
		"created":    result.Created,
	}
	if err := writeJSON(w, status, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *IdentityHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	identity, err := h.identityService.Get(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	profile, err := h.profileService.Get(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"identity": identity,
		"profile":  profile,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *IdentityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identityID, err := getIDFromURL(r, "identityID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.identityService.Delete(r.Context(), identityID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
