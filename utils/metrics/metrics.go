package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "skajla", Name: "ws_connections", Help: "Open websocket connections",
	})
	MessagesPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "skajla", Name: "messages_persisted_total", Help: "Chat messages committed",
	})
	XPAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "skajla", Name: "xp_awarded_total", Help: "Total XP credited",
	})
	TenantViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "skajla", Name: "tenant_violations_total", Help: "Cross-tenant access refusals",
	})
	RateLimitHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "skajla", Name: "rate_limit_hits_total", Help: "Requests dropped by rate limiting",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "skajla", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(WSConnections, MessagesPersisted, XPAwarded, TenantViolations, RateLimitHits, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
