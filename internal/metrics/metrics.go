// Package metrics provides application-level metrics collection on a private
// Prometheus registry. The relay host serves the registry at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

const namespace = "qwallet"

// OutcomeOK labels a call that completed without error.
const OutcomeOK = "ok"

// Metric family names, exported for tests and dashboards.
const (
	GatewayCallsName     = namespace + "_gateway_calls_total"
	GatewayLatencyName   = namespace + "_gateway_call_duration_seconds"
	RelayMessagesName    = namespace + "_relay_messages_total"
	SessionRefreshesName = namespace + "_session_refreshes_total"
	EndpointCacheName    = namespace + "_endpoint_cache_lookups_total"
)

// Metrics holds the application collectors.
type Metrics struct {
	registry *prometheus.Registry

	gatewayCalls     *prometheus.CounterVec
	gatewayLatency   *prometheus.HistogramVec
	relayMessages    *prometheus.CounterVec
	sessionRefreshes *prometheus.CounterVec
	endpointCache    *prometheus.CounterVec
}

// Global is the process-wide metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = New()

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: GatewayCallsName,
			Help: "Gateway operations by outcome kind.",
		}, []string{"operation", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    GatewayLatencyName,
			Help:    "Gateway operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		relayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: RelayMessagesName,
			Help: "Relay envelopes handled by type and outcome.",
		}, []string{"type", "outcome"}),
		sessionRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: SessionRefreshesName,
			Help: "Identity refreshes by resulting state.",
		}, []string{"result"}),
		endpointCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: EndpointCacheName,
			Help: "Endpoint resolver cache lookups.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.gatewayCalls,
		m.gatewayLatency,
		m.relayMessages,
		m.sessionRefreshes,
		m.endpointCache,
	)

	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Outcome returns the label used for err: "ok" or the failure kind.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(qwerr.KindOf(err))
}

// RecordGatewayCall records a gateway operation with its duration and outcome.
func (m *Metrics) RecordGatewayCall(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(operation, Outcome(err)).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRelayMessage records a relay envelope handled by the host.
func (m *Metrics) RecordRelayMessage(msgType, outcome string) {
	if m == nil {
		return
	}
	m.relayMessages.WithLabelValues(msgType, outcome).Inc()
}

// RecordSessionRefresh records an identity refresh and the state it produced.
func (m *Metrics) RecordSessionRefresh(result string) {
	if m == nil {
		return
	}
	m.sessionRefreshes.WithLabelValues(result).Inc()
}

// RecordCacheHit records an endpoint cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.endpointCache.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records an endpoint cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.endpointCache.WithLabelValues("miss").Inc()
}

// Snapshot is a point-in-time summary of the counters.
type Snapshot struct {
	GatewayCalls     int64
	GatewayFailures  int64
	RelayMessages    int64
	RelayFailures    int64
	SessionRefreshes int64
	CacheHits        int64
	CacheMisses      int64
}

// Snapshot gathers the registry and sums each counter family.
func (m *Metrics) Snapshot() Snapshot {
	var snap Snapshot
	if m == nil {
		return snap
	}

	families, err := m.registry.Gather()
	if err != nil {
		return snap
	}

	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if metric.GetCounter() == nil {
				continue
			}
			v := int64(metric.GetCounter().GetValue())
			switch mf.GetName() {
			case GatewayCallsName:
				snap.GatewayCalls += v
				if label(metric, "outcome") != OutcomeOK {
					snap.GatewayFailures += v
				}
			case RelayMessagesName:
				snap.RelayMessages += v
				if label(metric, "outcome") != OutcomeOK {
					snap.RelayFailures += v
				}
			case SessionRefreshesName:
				snap.SessionRefreshes += v
			case EndpointCacheName:
				if label(metric, "result") == "hit" {
					snap.CacheHits += v
				} else {
					snap.CacheMisses += v
				}
			}
		}
	}

	return snap
}

// CacheHitRate returns the endpoint cache hit rate as a percentage (0-100).
func (m *Metrics) CacheHitRate() float64 {
	snap := m.Snapshot()
	total := snap.CacheHits + snap.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(snap.CacheHits) / float64(total) * 100
}

func label(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
