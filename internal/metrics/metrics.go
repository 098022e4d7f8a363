// Package metrics provides Prometheus instrumentation for the turbo
// ledger. It exposes gauges for live sessions and pool balances,
// counters for lifecycle operations, and a histogram for boundary
// request latency.
package metrics

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsActive tracks the current number of active boost sessions.
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "turbo_sessions_active",
		Help: "Current number of active boost sessions",
	})

	// EngagesTotal counts successful engagements, labeled by tier.
	EngagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turbo_engages_total",
		Help: "Total number of successful session engagements",
	}, []string{"tier"})

	// DisengagesTotal counts successful disengagements.
	DisengagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turbo_disengages_total",
		Help: "Total number of successful session disengagements",
	})

	// RewardCreditsTotal counts controller reward credits.
	RewardCreditsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turbo_reward_credits_total",
		Help: "Total number of reward credits applied",
	})

	// RewardClaimsTotal counts successful non-zero reward claims.
	RewardClaimsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turbo_reward_claims_total",
		Help: "Total number of non-zero reward claims paid out",
	})

	// TransferFailuresTotal counts failed outbound value transfers
	// (refunds, claims and fee withdrawals whose payout leg failed).
	TransferFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "turbo_transfer_failures_total",
		Help: "Total number of failed outbound value transfers",
	})

	// RejectedTotal counts boundary requests rejected before or by the
	// ledger, labeled by operation and rejection reason.
	RejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turbo_rejected_total",
		Help: "Total number of rejected ledger requests",
	}, []string{"op", "reason"})

	// RequestDuration records boundary request handling latency.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "turbo_request_duration_seconds",
		Help:    "Ledger request handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"op"})

	// Pool balance gauges. Wei amounts are reported as floats for
	// dashboarding; exactness lives in the ledger, not here.
	intakeDepositsWei = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "turbo_pool_intake_deposits_wei",
		Help: "Sum of deposits across active sessions, in wei",
	})
	rewardPoolWei = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "turbo_pool_reward_wei",
		Help: "Advisory reward pool balance, in wei",
	})
	protocolAccruedWei = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "turbo_pool_protocol_accrued_wei",
		Help: "Protocol fees accrued and pending withdrawal, in wei",
	})
	systemBalanceWei = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "turbo_pool_system_balance_wei",
		Help: "Tracked hosting-account balance, in wei",
	})
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		EngagesTotal,
		DisengagesTotal,
		RewardCreditsTotal,
		RewardClaimsTotal,
		TransferFailuresTotal,
		RejectedTotal,
		RequestDuration,
		intakeDepositsWei,
		rewardPoolWei,
		protocolAccruedWei,
		systemBalanceWei,
	)
}

// SetPoolGauges publishes the four pool counters.
func SetPoolGauges(intake, reward, accrued, balance *big.Int) {
	intakeDepositsWei.Set(weiFloat(intake))
	rewardPoolWei.Set(weiFloat(reward))
	protocolAccruedWei.Set(weiFloat(accrued))
	systemBalanceWei.Set(weiFloat(balance))
}

func weiFloat(wei *big.Int) float64 {
	f, _ := new(big.Float).SetInt(wei).Float64()
	return f
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
