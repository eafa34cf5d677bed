package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

func TestOutcome(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "unauthorized", Outcome(qwerr.ErrUnauthorized))
	assert.Equal(t, "connectivity_failure", Outcome(qwerr.ErrTimeout))
}

func TestMetrics_RecordGatewayCall(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordGatewayCall("list_wallets", 100*time.Millisecond, nil)
	m.RecordGatewayCall("list_wallets", 50*time.Millisecond, qwerr.ErrUnauthorized)
	m.RecordGatewayCall("generate_wallet", 10*time.Millisecond, qwerr.ErrInvalidOption)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.gatewayCalls.WithLabelValues("list_wallets", "ok")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.gatewayCalls.WithLabelValues("list_wallets", "unauthorized")), 0.001)
	assert.Equal(t, 2, testutil.CollectAndCount(m.gatewayLatency))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.GatewayCalls)
	assert.Equal(t, int64(2), snap.GatewayFailures)
}

func TestMetrics_RelayAndSession(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordRelayMessage("API_REQUEST", OutcomeOK)
	m.RecordRelayMessage("GET_BALANCE", "connectivity_failure")
	m.RecordSessionRefresh("authenticated")
	m.RecordSessionRefresh("anonymous")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.RelayMessages)
	assert.Equal(t, int64(1), snap.RelayFailures)
	assert.Equal(t, int64(2), snap.SessionRefreshes)
}

func TestMetrics_CacheHitRate(t *testing.T) {
	t.Parallel()
	m := New()

	assert.InDelta(t, 0.0, m.CacheHitRate(), 0.001)

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	assert.InDelta(t, 75.0, m.CacheHitRate(), 0.001)
}

func TestMetrics_NilReceiver(t *testing.T) {
	t.Parallel()
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordGatewayCall("x", time.Second, nil)
		m.RecordRelayMessage("x", OutcomeOK)
		m.RecordSessionRefresh("x")
		m.RecordCacheHit()
		m.RecordCacheMiss()
	})
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMetrics_RegistryExposition(t *testing.T) {
	t.Parallel()
	m := New()
	m.RecordSessionRefresh("authenticated")

	expected := `
# HELP qwallet_session_refreshes_total Identity refreshes by resulting state.
# TYPE qwallet_session_refreshes_total counter
qwallet_session_refreshes_total{result="authenticated"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), SessionRefreshesName))
}
