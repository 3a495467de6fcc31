// Package metrics holds the node's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "raffled"

var (
	// Registry holds the node's collectors. It is separate from the default
	// registry so tests and embedders get a clean set.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	ticketsSold = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_sold_total",
			Help:      "Tickets recorded, split by free and paid raffles.",
		},
		[]string{"kind"},
	)

	draws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draws_total",
			Help:      "Raffle draws by outcome (drawn, cancelled, failed).",
		},
		[]string{"outcome"},
	)

	payouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_total",
			Help:      "Payout attempts by kind and resulting ledger status.",
		},
		[]string{"kind", "status"},
	)

	payoutLamports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_lamports_total",
			Help:      "Lamports sent in confirmed payouts.",
		},
		[]string{"kind"},
	)

	deposits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposit_verifications_total",
			Help:      "Deposit verification results.",
		},
		[]string{"result"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs by job and success.",
		},
		[]string{"job", "success"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of background job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"job"},
	)

	rpcErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "Solana RPC failures by operation.",
		},
		[]string{"operation"},
	)

	hotWalletBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hot_wallet_balance_lamports",
			Help:      "Last observed balance of the hot wallet.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		ticketsSold,
		draws,
		payouts,
		payoutLamports,
		deposits,
		jobRuns,
		jobDuration,
		rpcErrors,
		hotWalletBalance,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RecordTickets(free bool, quantity uint32) {
	kind := "paid"
	if free {
		kind = "free"
	}
	ticketsSold.WithLabelValues(kind).Add(float64(quantity))
}

func RecordDraw(outcome string) {
	draws.WithLabelValues(outcome).Inc()
}

func RecordPayout(kind, status string, lamports uint64) {
	payouts.WithLabelValues(kind, status).Inc()
	if status == "confirmed" {
		payoutLamports.WithLabelValues(kind).Add(float64(lamports))
	}
}

func RecordDeposit(result string) {
	deposits.WithLabelValues(result).Inc()
}

func RecordJob(job string, success bool, elapsed time.Duration) {
	jobRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
	jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func RecordRPCError(operation string) {
	rpcErrors.WithLabelValues(operation).Inc()
}

func SetHotWalletBalance(lamports uint64) {
	hotWalletBalance.Set(float64(lamports))
}
