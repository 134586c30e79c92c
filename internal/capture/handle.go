// Package capture runs recording sessions: one audio input stream feeding
// one WAV sink per source.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/whisper-capture/internal/audio"
	"github.com/petems/whisper-capture/internal/metrics"
	"github.com/petems/whisper-capture/internal/sink"
	"github.com/petems/whisper-capture/internal/source"
)

var (
	ErrStreamBuildFailed = errors.New("failed to build input stream")
	ErrFileCreateFailed  = errors.New("failed to create recording file")
	ErrFinalizeFailed    = errors.New("failed to finalize recording")
	ErrClosed            = errors.New("capture session already closed")
)

// OpenParams describes one session.
type OpenParams struct {
	Source source.Tag
	Path   string
	// DeviceID selects the input device; empty uses the host default.
	DeviceID string
	Format   sink.Format
}

// Handle is a live capture session. It is consumed by Close.
type Handle struct {
	source    source.Tag
	device    string
	startedAt time.Time

	stream  audio.Stream
	sink    *sink.Sink
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	closed bool
}

// Open resolves the device, creates the recording file and starts streaming
// into it. On failure nothing is left running and the file is removed.
func Open(host audio.Host, p OpenParams, log zerolog.Logger, m *metrics.Metrics) (*Handle, error) {
	log = log.With().Str("source", p.Source.String()).Logger()

	device, err := resolveDevice(host, p.DeviceID)
	if err != nil {
		return nil, err
	}

	s, err := sink.Create(p.Path, p.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileCreateFailed, err)
	}

	h := &Handle{
		source:  p.Source,
		device:  device.Name,
		sink:    s,
		log:     log,
		metrics: m,
	}

	stream, err := host.OpenInput(device.ID, audio.StreamConfig{
		SampleRate: p.Format.SampleRate,
		Channels:   p.Format.Channels,
	}, h.onData, h.onError)
	if err != nil {
		s.Abort()
		return nil, fmt.Errorf("%w: %w", ErrStreamBuildFailed, err)
	}
	h.stream = stream

	if err := stream.Start(); err != nil {
		if cerr := stream.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close stream after start failure")
		}
		s.Abort()
		return nil, fmt.Errorf("%w: starting stream: %w", ErrStreamBuildFailed, err)
	}

	h.startedAt = time.Now()
	m.SessionStarted(p.Source.String())
	log.Info().
		Str("device", device.Name).
		Str("path", p.Path).
		Int("sample_rate", p.Format.SampleRate).
		Int("channels", p.Format.Channels).
		Msg("Recording started")

	return h, nil
}

func resolveDevice(host audio.Host, deviceID string) (audio.Device, error) {
	if deviceID == "" {
		d, err := host.DefaultInputDevice()
		if err != nil {
			if errors.Is(err, audio.ErrNoInputDevice) {
				return audio.Device{}, err
			}
			return audio.Device{}, fmt.Errorf("%w: %w", audio.ErrNoInputDevice, err)
		}
		return d, nil
	}

	devices, err := host.Devices()
	if err != nil {
		return audio.Device{}, err
	}
	for _, d := range devices {
		if d.ID == deviceID || d.Name == deviceID {
			return d, nil
		}
	}
	// Hosts may accept IDs they do not enumerate, such as pulse monitors.
	return audio.Device{ID: deviceID, Name: deviceID}, nil
}

// onData runs on the host's audio thread.
func (h *Handle) onData(samples []float32) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Msg("Recovered from panic in audio callback")
		}
	}()

	failed, err := h.sink.Write(samples)
	if errors.Is(err, sink.ErrFinalized) {
		h.log.Debug().Int("samples", len(samples)).Msg("Dropped samples delivered after stop")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("failed", failed).Msg("Failed to write samples")
		h.metrics.AddSamplesFailed(h.source.String(), failed)
	}
	h.metrics.AddSamplesWritten(h.source.String(), len(samples)-failed)
}

func (h *Handle) onError(err error) {
	h.log.Warn().Err(err).Msg("Audio stream error")
}

// Close stops the stream and finalizes the recording. Stream faults are
// logged; only a finalize failure is returned.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.closed = true

	if err := h.stream.Pause(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to pause stream")
	}
	if err := h.stream.Close(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to close stream")
	}

	h.metrics.SessionStopped()

	if err := h.sink.Finalize(); err != nil {
		h.log.Error().Err(err).Msg("Failed to finalize recording")
		return fmt.Errorf("%w: %s: %w", ErrFinalizeFailed, h.sink.Path(), err)
	}

	h.log.Info().
		Int64("samples", h.sink.Samples()).
		Int64("failed", h.sink.Failed()).
		Dur("duration", time.Since(h.startedAt)).
		Str("path", h.sink.Path()).
		Msg("Recording stopped")
	return nil
}

func (h *Handle) Source() source.Tag   { return h.source }
func (h *Handle) Path() string         { return h.sink.Path() }
func (h *Handle) Device() string       { return h.device }
func (h *Handle) Samples() int64       { return h.sink.Samples() }
func (h *Handle) Failed() int64        { return h.sink.Failed() }
func (h *Handle) StartedAt() time.Time { return h.startedAt }
