package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsCalls(t *testing.T) {
	c, err := NewCollector("namedivider", prometheus.NewRegistry())
	require.NoError(t, err)

	done := c.CallStarted("basic")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inflight))
	done(OutcomeOK, 4)

	c.CallStarted("gbdt")("SERVER_ERROR", 4)
	c.ChunkDispatched()

	assert.Equal(t, 0.0, testutil.ToFloat64(c.inflight))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.callsTotal.WithLabelValues("basic", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.callsTotal.WithLabelValues("gbdt", "SERVER_ERROR")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.namesTotal.WithLabelValues("basic")))
	// Failed calls divide nothing.
	assert.Equal(t, 0.0, testutil.ToFloat64(c.namesTotal.WithLabelValues("gbdt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.chunksTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(c.callDuration))
}

func TestCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector("namedivider", reg)
	require.NoError(t, err)

	_, err = NewCollector("namedivider", reg)
	assert.Error(t, err)

	_, err = NewCollector("other", reg)
	assert.NoError(t, err)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.CallStarted("basic")(OutcomeOK, 1)
		c.ChunkDispatched()
	})
}
