package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for authOutcomes.
const (
	outcomeSuccess     = "success"
	outcomeInvalid     = "invalid_credentials"
	outcomeDisabled    = "account_disabled"
	outcomeMalformed   = "malformed_token"
	outcomeExpired     = "expired_token"
	outcomeRevoked     = "revoked"
	outcomeUnavailable = "store_unavailable"
	outcomeInternal    = "internal_error"
	outcomeBadRequest  = "bad_request"
)

var (
	// authOutcomes counts auth operations by operation and outcome.
	authOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_auth_operations_total",
			Help: "Total number of auth operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// blacklistPurged counts revocation records removed by the janitor.
	blacklistPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authcore_blacklist_purged_total",
			Help: "Total number of expired revocation records purged",
		},
	)
)
