package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddSamplesWritten("local", 10)
		m.AddSamplesFailed("local", 1)
		m.SessionStarted("local")
		m.SessionStopped()
		m.ObserveTranscription(ResultSuccess, time.Second)
	})
}

func TestCaptureCounters(t *testing.T) {
	m := New(nil)

	m.SessionStarted("local")
	m.SessionStarted("remote")
	m.AddSamplesWritten("local", 480)
	m.AddSamplesWritten("local", 480)
	m.AddSamplesFailed("remote", 3)
	m.SessionStopped()

	assert.Equal(t, 960.0, testutil.ToFloat64(m.samplesWritten.WithLabelValues("local")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.samplesFailed.WithLabelValues("remote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("remote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.active))
}

func TestTranscriptionCounters(t *testing.T) {
	m := New(nil)

	m.ObserveTranscription(ResultSuccess, 2*time.Second)
	m.ObserveTranscription(ResultFailure, time.Millisecond)
	m.ObserveTranscription(ResultSuccess, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transcriptions.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transcriptions.WithLabelValues(ResultFailure)))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SessionStarted("local")

	n, err := testutil.GatherAndCount(reg, "whisper_capture_capture_sessions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
