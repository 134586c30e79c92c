// Package metrics exposes prometheus collectors for capture sessions and
// transcription. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "whisper_capture"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultEmpty   = "empty"
)

type Metrics struct {
	samplesWritten *prometheus.CounterVec
	samplesFailed  *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	active         prometheus.Gauge

	transcriptionTime *prometheus.HistogramVec
	transcriptions    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to read values directly.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.samplesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "samples_written_total",
		Help:      "Samples appended to recording files",
	}, []string{"source"})

	m.samplesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "samples_failed_total",
		Help:      "Samples delivered by the host that could not be stored",
	}, []string{"source"})

	m.sessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "sessions_total",
		Help:      "Capture sessions started per source",
	}, []string{"source"})

	m.active = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "active_sessions",
		Help:      "Capture sessions currently recording",
	})

	m.transcriptionTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transcription_duration_seconds",
		Help:      "Time spent decoding and recognizing a recording",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"result"})

	m.transcriptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcriptions_total",
		Help:      "Transcriptions by result: success, empty or failure",
	}, []string{"result"})

	if reg != nil {
		reg.MustRegister(m.samplesWritten, m.samplesFailed, m.sessions, m.active, m.transcriptionTime, m.transcriptions)
	}

	return m
}

func (m *Metrics) AddSamplesWritten(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.samplesWritten.With(prometheus.Labels{"source": source}).Add(float64(n))
}

func (m *Metrics) AddSamplesFailed(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.samplesFailed.With(prometheus.Labels{"source": source}).Add(float64(n))
}

func (m *Metrics) SessionStarted(source string) {
	if m == nil {
		return
	}
	m.sessions.With(prometheus.Labels{"source": source}).Inc()
	m.active.Inc()
}

func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.active.Dec()
}

func (m *Metrics) ObserveTranscription(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"result": result}
	m.transcriptions.With(labels).Inc()
	m.transcriptionTime.With(labels).Observe(elapsed.Seconds())
}
