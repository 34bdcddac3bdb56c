// Package metrics exposes the sign-in domain counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Results recorded on signinAttempts.
const (
	ResultSuccess          = "success"
	ResultUnknownProvider  = "unknown_provider"
	ResultExchangeFailed   = "exchange_failed"
	ResultLinkageConflict  = "linkage_conflict"
	ResultCreationConflict = "creation_conflict"
	ResultError            = "error"
)

var (
	signinAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "idbridge",
		Subsystem: "signin",
		Name:      "attempts_total",
		Help:      "Completed sign-in callbacks by provider and result.",
	}, []string{"provider", "result"})

	challengesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "idbridge",
		Subsystem: "signin",
		Name:      "challenges_total",
		Help:      "Challenges started by provider.",
	}, []string{"provider"})

	accountsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "idbridge",
		Subsystem: "signin",
		Name:      "accounts_created_total",
		Help:      "Accounts created on first external sign-in, by provider.",
	}, []string{"provider"})

	sessionsEstablished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "idbridge",
		Subsystem: "signin",
		Name:      "sessions_established_total",
		Help:      "Sessions established after successful callbacks.",
	})

	openRedirectsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "idbridge",
		Subsystem: "signin",
		Name:      "open_redirects_rejected_total",
		Help:      "Return URLs replaced by the home default.",
	})
)

func ObserveChallenge(provider string) {
	challengesStarted.WithLabelValues(provider).Inc()
}

func ObserveAttempt(provider, result string) {
	signinAttempts.WithLabelValues(provider, result).Inc()
}

func ObserveAccountCreated(provider string) {
	accountsCreated.WithLabelValues(provider).Inc()
}

func ObserveSessionEstablished() {
	sessionsEstablished.Inc()
}

func ObserveOpenRedirectRejected() {
	openRedirectsRejected.Inc()
}
