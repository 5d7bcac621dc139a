package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	LogsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ecoquest_logs_submitted_total",
			Help: "Eco logs applied to a profile (duplicates excluded)",
		},
	)
	ChallengesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoquest_challenges_completed_total",
			Help: "Challenges that transitioned to completed",
		},
		[]string{"source"},
	)
	TxRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoquest_tx_retries_total",
			Help: "Storage transactions retried after a conflict",
		},
		[]string{"backend"},
	)
	AdviceFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecoquest_advice_fallbacks_total",
			Help: "Advice requests answered with the static fallback",
		},
		[]string{"reason"},
	)
)

// Register adds the domain collectors to reg. Call it once from main.go.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(LogsSubmitted, ChallengesCompleted, TxRetries, AdviceFallbacks)
}
