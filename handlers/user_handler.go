package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"ecoQuestAPI/internal/identity"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/internal/types/user"
	"ecoQuestAPI/services"
)

type UserHandler struct {
	userService   *services.UserService
	adviceService *services.AdviceService
	resolver      identity.Resolver
}

func NewUserHandler(userService *services.UserService, adviceService *services.AdviceService, resolver identity.Resolver) *UserHandler {
	return &UserHandler{
		userService:   userService,
		adviceService: adviceService,
		resolver:      resolver,
	}
}

// GetProfile creates the profile on first sight of an authenticated user,
// in case the Clerk webhook has not arrived yet.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := currentUID(w, r)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		id, rerr := h.resolver.Resolve(ctx, uid)
		if rerr != nil {
			log.Warn().Err(rerr).Str("uid", uid).Msg("GetProfile: identity lookup failed, using defaults")
			id = user.Identity{UID: uid}
		}
		profile, err = h.userService.EnsureProfile(ctx, id)
	}
	if err != nil {
		respondWithServiceError(w, "GetProfile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) GetAdvice(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUID(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.adviceService.GetAdvice(r.Context(), uid))
}

type HealthHandler struct {
	ping func(ctx context.Context) error
}

func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Health: store ping failed")
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": "store unreachable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "ecoquest-api"})
}
