package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"ecoQuestAPI/internal/types/ecolog"
	"ecoQuestAPI/services"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type EcoLogHandler struct {
	ecoLogService *services.EcoLogService
}

func NewEcoLogHandler(ecoLogService *services.EcoLogService) *EcoLogHandler {
	return &EcoLogHandler{
		ecoLogService: ecoLogService,
	}
}

// SubmitLog answers 201 for a new log and 200 when the idempotency key was
// already used.
func (h *EcoLogHandler) SubmitLog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := currentUID(w, r)
	if !ok {
		return
	}

	var req ecolog.CreateLogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		if req.ID != "" && req.ID != key {
			respondWithServiceError(w, "SubmitLog", services.ErrIdempotencyKey)
			return
		}
		req.ID = key
	}

	res, err := h.ecoLogService.SubmitLog(ctx, uid, &req)
	if err != nil {
		respondWithServiceError(w, "SubmitLog", err)
		return
	}

	code := http.StatusCreated
	if res.Duplicate {
		code = http.StatusOK
	}
	respondWithJSON(w, code, res)
}

func (h *EcoLogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	uid, ok := currentUID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'limit' must be a positive integer")
			return
		}
		limit = v
	}

	logs, err := h.ecoLogService.ListLogs(ctx, uid, limit)
	if err != nil {
		respondWithServiceError(w, "ListLogs", err)
		return
	}
	respondWithJSON(w, http.StatusOK, logs)
}

func (h *EcoLogHandler) PreviewLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUID(w, r); !ok {
		return
	}

	var req ecolog.CreateLogRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.ecoLogService.PreviewLog(&req)
	if err != nil {
		respondWithServiceError(w, "PreviewLog", err)
		return
	}
	respondWithJSON(w, http.StatusOK, preview)
}

func (h *EcoLogHandler) Presets(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.ecoLogService.Presets())
}
