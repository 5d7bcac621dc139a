package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/store"
	"ecoQuestAPI/middleware"
	"ecoQuestAPI/services"
)

const requestTimeout = 5 * time.Second

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps the service and store error taxonomy onto
// status codes. Anything unrecognised is logged and hidden behind a 500.
func respondWithServiceError(w http.ResponseWriter, op string, err error) {
	var verr *footprint.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, services.ErrIdempotencyKey):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrChallengeNotFound):
		respondWithError(w, http.StatusNotFound, "Challenge not found")
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrChallengeNotReady):
		respondWithError(w, http.StatusConflict, "Challenge target not reached yet")
	case errors.Is(err, store.ErrTxConflict):
		w.Header().Set("Retry-After", "1")
		respondWithError(w, http.StatusConflict, "Concurrent update, please retry")
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg(op + ": storage unavailable")
		respondWithError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		log.Error().Err(err).Msg(op + ": unexpected error")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// currentUID reads the authenticated id or writes a 401.
func currentUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	return uid, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
