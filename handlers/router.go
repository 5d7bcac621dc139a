package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

type Router struct {
	Users       *UserHandler
	Logs        *EcoLogHandler
	Challenges  *ChallengeHandler
	Leaderboard *LeaderboardHandler
	Webhooks    *WebhookHandler
	Health      *HealthHandler

	// Auth guards /api/v1. Metrics, when set, is mounted at /metrics as is.
	Auth       mux.MiddlewareFunc
	Metrics    http.Handler
	Middleware []mux.MiddlewareFunc
}

func (rt Router) Build() *mux.Router {
	r := mux.NewRouter()
	for _, mw := range rt.Middleware {
		r.Use(mw)
	}

	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics).Methods("GET")
	}
	r.HandleFunc("/health", rt.Health.Health).Methods("GET")
	if rt.Webhooks != nil {
		r.HandleFunc("/webhooks/clerk", rt.Webhooks.HandleClerkWebhook).Methods("POST")
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(rt.Auth)

	api.HandleFunc("/user", rt.Users.GetProfile).Methods("GET")
	api.HandleFunc("/user/advice", rt.Users.GetAdvice).Methods("GET")

	api.HandleFunc("/logs", rt.Logs.SubmitLog).Methods("POST")
	api.HandleFunc("/logs", rt.Logs.ListLogs).Methods("GET")
	api.HandleFunc("/logs/preview", rt.Logs.PreviewLog).Methods("POST")
	api.HandleFunc("/logs/presets", rt.Logs.Presets).Methods("GET")

	api.HandleFunc("/challenges/catalog", rt.Challenges.Catalog).Methods("GET")
	api.HandleFunc("/challenges", rt.Challenges.ListChallenges).Methods("GET")
	api.HandleFunc("/challenges/{id}/join", rt.Challenges.JoinChallenge).Methods("POST")
	api.HandleFunc("/challenges/{id}/complete", rt.Challenges.CompleteChallenge).Methods("POST")

	api.HandleFunc("/leaderboard", rt.Leaderboard.GetLeaderboard).Methods("GET")

	return r
}
