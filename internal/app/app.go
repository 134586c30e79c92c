package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/whisper-capture/internal/capture"
	"github.com/petems/whisper-capture/internal/inject"
	"github.com/petems/whisper-capture/internal/source"
	"github.com/petems/whisper-capture/internal/transcribe"
)

// ErrRecognitionUnavailable is returned by every transcription request
// when no model was loaded at startup.
var ErrRecognitionUnavailable = errors.New("speech recognition is not available; please download the whisper model")

// StatusUpdater is an interface for updating status (e.g., a console prompt)
type StatusUpdater interface {
	SetIdle()
	SetRecording(sources []source.Tag)
	SetProcessing(tag source.Tag)
	SetError(err error)
}

type Config struct {
	Registry    *capture.Registry
	Recognition transcribe.Availability
	// Injector receives transcripts when CopyToClipboard is set.
	Injector        inject.Injector
	CopyToClipboard bool
	Logger          zerolog.Logger
	StatusUpdater   StatusUpdater // Optional - can be nil
}

// App is the command surface over the capture registry and the
// recognizer. Every error it returns reads well as a message to the user.
type App struct {
	reg    *capture.Registry
	rec    transcribe.Availability
	inj    inject.Injector
	copy   bool
	log    zerolog.Logger
	status StatusUpdater
}

func New(cfg Config) *App {
	rec := cfg.Recognition
	if rec == nil {
		rec = transcribe.Unavailable{Reason: transcribe.ErrModelNotFound}
	}
	return &App{
		reg:    cfg.Registry,
		rec:    rec,
		inj:    cfg.Injector,
		copy:   cfg.CopyToClipboard && cfg.Injector != nil,
		log:    cfg.Logger,
		status: cfg.StatusUpdater,
	}
}

// StartCapture begins recording the named source.
func (a *App) StartCapture(name string) error {
	tag, err := source.Parse(name)
	if err != nil {
		return err
	}

	if err := a.reg.Start(tag); err != nil {
		a.log.Error().Err(err).Str("source", tag.String()).Msg("Failed to start capture")
		a.setError(err)
		return fmt.Errorf("failed to start %s capture: %w", tag, err)
	}

	a.refreshStatus()
	return nil
}

// StopCapture ends recording of the named source; stopping an idle source
// succeeds.
func (a *App) StopCapture(name string) error {
	tag, err := source.Parse(name)
	if err != nil {
		return err
	}

	if err := a.reg.Stop(tag); err != nil {
		a.log.Error().Err(err).Str("source", tag.String()).Msg("Failed to stop capture")
		a.setError(err)
		return fmt.Errorf("failed to stop %s capture: %w", tag, err)
	}

	a.refreshStatus()
	return nil
}

// Transcribe stops the named source and returns the text of its recording.
// It blocks for the whole inference; callers that must stay responsive run
// it in a goroutine.
func (a *App) Transcribe(ctx context.Context, name string) (string, error) {
	tag, err := source.Parse(name)
	if err != nil {
		return "", err
	}

	if err := a.StopCapture(tag.String()); err != nil {
		return "", err
	}

	if a.status != nil {
		a.status.SetProcessing(tag)
	}
	defer a.refreshStatus()

	return a.transcribePath(ctx, a.reg.Path(tag))
}

// TranscribeFile transcribes an arbitrary WAV file.
func (a *App) TranscribeFile(ctx context.Context, path string) (string, error) {
	return a.transcribePath(ctx, path)
}

func (a *App) transcribePath(ctx context.Context, path string) (string, error) {
	var svc *transcribe.Service
	switch r := a.rec.(type) {
	case transcribe.Ready:
		svc = r.Service
	case transcribe.Unavailable:
		a.log.Warn().Err(r.Reason).Msg("Transcription requested without a model")
		return "", fmt.Errorf("%w (%v)", ErrRecognitionUnavailable, r.Reason)
	default:
		return "", ErrRecognitionUnavailable
	}

	start := time.Now()
	text, err := svc.Transcribe(ctx, path)
	if err != nil {
		a.log.Error().Err(err).Str("path", path).Msg("Transcription failed")
		a.setError(err)
		return "", err
	}

	a.log.Info().
		Str("path", path).
		Dur("elapsed", time.Since(start)).
		Str("text", text).
		Msg("Transcribed")

	if a.copy && text != "" {
		if err := a.inj.Copy(ctx, text); err != nil {
			a.log.Warn().Err(err).Msg("Failed to copy transcript to clipboard")
		}
	}

	return text, nil
}

// RecognitionAvailable reports whether a model was loaded.
func (a *App) RecognitionAvailable() bool {
	_, ok := a.rec.(transcribe.Ready)
	return ok
}

// ActiveSources lists the sources currently recording.
func (a *App) ActiveSources() []source.Tag {
	return a.reg.ActiveSources()
}

// Shutdown stops every source and releases the model.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.reg.StopAll()
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to stop all captures")
	}

	if r, ok := a.rec.(transcribe.Ready); ok {
		if cerr := r.Service.Close(); cerr != nil {
			a.log.Warn().Err(cerr).Msg("Failed to release whisper model")
		}
	}

	if a.status != nil {
		a.status.SetIdle()
	}
	return err
}

func (a *App) refreshStatus() {
	if a.status == nil {
		return
	}
	if active := a.reg.ActiveSources(); len(active) > 0 {
		a.status.SetRecording(active)
		return
	}
	a.status.SetIdle()
}

func (a *App) setError(err error) {
	if a.status != nil {
		a.status.SetError(err)
	}
}

func sourceNames(tags []source.Tag) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}
