package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"ecoQuestAPI/internal/types/challenge"
	"ecoQuestAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

func (h *ChallengeHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := currentUID(w, r)
	if !ok {
		return
	}

	items, err := h.challengeService.Catalog(ctx, uid)
	if err != nil {
		respondWithServiceError(w, "Catalog", err)
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := currentUID(w, r)
	if !ok {
		return
	}

	status := challenge.Status(r.URL.Query().Get("status"))
	list, err := h.challengeService.ListChallenges(ctx, uid, status)
	if err != nil {
		respondWithServiceError(w, "ListChallenges", err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := currentUID(w, r)
	if !ok {
		return
	}

	c, err := h.challengeService.JoinChallenge(ctx, uid, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "JoinChallenge", err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

type completeChallengeResponse struct {
	Challenge *challenge.UserChallenge `json:"challenge"`
	Credited  bool                     `json:"credited"`
}

func (h *ChallengeHandler) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := currentUID(w, r)
	if !ok {
		return
	}

	c, credited, err := h.challengeService.CompleteChallenge(ctx, uid, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, "CompleteChallenge", err)
		return
	}
	respondWithJSON(w, http.StatusOK, completeChallengeResponse{Challenge: c, Credited: credited})
}
