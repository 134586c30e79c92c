// Package transcribe turns finished recordings into text with a
// whisper.cpp model.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/whisper-capture/internal/audio"
	"github.com/petems/whisper-capture/internal/metrics"
)

// SampleRate is the rate whisper models are trained on.
const SampleRate = 16000

var (
	ErrFileOpenFailed         = errors.New("failed to open audio file")
	ErrUnsupportedAudioFormat = errors.New("unsupported audio format")
	ErrModelNotFound          = errors.New("speech recognition model not found")
	ErrModelLoadFailed        = errors.New("failed to load speech recognition model")
	ErrInferenceFailed        = errors.New("transcription failed")
)

// Options are fixed for the lifetime of a Service.
type Options struct {
	Language string
	Threads  int
}

// Model runs one greedy recognition pass over 16 kHz mono samples and
// returns the segment texts in emission order. Implementations must be
// safe for concurrent use.
type Model interface {
	Recognize(ctx context.Context, samples []float32, opts Options) ([]string, error)
	Close() error
}

// Service transcribes recordings with a loaded model.
type Service struct {
	model   Model
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(model Model, opts Options, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		model:   model,
		opts:    opts,
		log:     log,
		metrics: m,
	}
}

// Transcribe reads the WAV file at path and returns its text. Silence or an
// empty recording yields "" without error; a failed inference never
// returns partial text.
func (s *Service) Transcribe(ctx context.Context, path string) (string, error) {
	start := time.Now()

	rec, err := ReadWAV(path)
	if err != nil {
		s.metrics.ObserveTranscription(metrics.ResultFailure, time.Since(start))
		return "", err
	}

	text, err := s.TranscribeRecording(ctx, rec)
	switch {
	case err != nil:
		s.metrics.ObserveTranscription(metrics.ResultFailure, time.Since(start))
		return "", err
	case text == "":
		s.metrics.ObserveTranscription(metrics.ResultEmpty, time.Since(start))
	default:
		s.metrics.ObserveTranscription(metrics.ResultSuccess, time.Since(start))
	}

	s.log.Info().
		Str("path", path).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(text)).
		Msg("Transcription complete")

	return text, nil
}

// TranscribeRecording runs recognition on an already decoded recording.
func (s *Service) TranscribeRecording(ctx context.Context, rec *Recording) (string, error) {
	samples := audio.DownmixInterleaved(rec.Samples, rec.Channels)
	if len(samples) == 0 {
		s.log.Debug().Msg("Recording is empty, skipping inference")
		return "", nil
	}

	if rec.SampleRate != SampleRate {
		s.log.Warn().
			Int("sample_rate", rec.SampleRate).
			Int("expected", SampleRate).
			Msg("Recording is not 16 kHz; accuracy will suffer")
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInferenceFailed, err)
	}

	segments, err := s.model.Recognize(ctx, samples, s.opts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInferenceFailed, err)
	}

	return joinSegments(segments), nil
}

// Close releases the model.
func (s *Service) Close() error {
	return s.model.Close()
}

// joinSegments separates segments with exactly one space.
func joinSegments(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg = strings.TrimSpace(seg); seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, " ")
}
