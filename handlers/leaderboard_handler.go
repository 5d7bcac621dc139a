package handlers

import (
	"context"
	"net/http"

	"ecoQuestAPI/services"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
	}
}

func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := currentUID(w, r)
	if !ok {
		return
	}

	lb, err := h.leaderboardService.GetLeaderboard(ctx, uid)
	if err != nil {
		respondWithServiceError(w, "GetLeaderboard", err)
		return
	}
	respondWithJSON(w, http.StatusOK, lb)
}
