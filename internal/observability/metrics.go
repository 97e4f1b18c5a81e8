package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OptimisticApplies counts provisional state changes applied before the
	// upstream round-trip, by action.
	OptimisticApplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitboard_optimistic_applies_total",
		Help: "Total optimistic state changes applied ahead of upstream confirmation",
	}, []string{"action"})

	// Confirmations counts upstream confirmations folded back into sessions.
	Confirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitboard_confirmations_total",
		Help: "Total upstream confirmations applied to session state",
	}, []string{"action"})

	// Rollbacks counts compensations after a failed upstream call, by action
	// and failure code.
	Rollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitboard_rollbacks_total",
		Help: "Total optimistic changes rolled back or flagged failed",
	}, []string{"action", "code"})

	// StaleDrops counts late results dropped because their target entity or
	// session was gone by the time they arrived.
	StaleDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitboard_stale_drops_total",
		Help: "Total late upstream results dropped as stale",
	}, []string{"action"})

	// OpenSessions is the gauge of live feed sessions.
	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pitboard_open_sessions",
		Help: "Number of currently open feed sessions",
	})

	// CacheHits counts cache-aside hits by resource.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitboard_cache_hits_total",
		Help: "Total cache hits by resource",
	}, []string{"resource"})

	// CacheMisses counts cache-aside misses by resource.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitboard_cache_misses_total",
		Help: "Total cache misses by resource",
	}, []string{"resource"})

	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitboard_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// UpstreamCalls counts calls to the upstream backend by operation and
	// outcome.
	UpstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pitboard_upstream_calls_total",
		Help: "Total upstream calls by operation and outcome",
	}, []string{"operation", "outcome"})
)
