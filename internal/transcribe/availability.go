package transcribe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/petems/whisper-capture/internal/config"
	"github.com/petems/whisper-capture/internal/metrics"
)

// Availability is the outcome of loading the recognizer: either Ready or
// Unavailable. Consumers type switch on it.
type Availability interface {
	availability()
}

// Unavailable means recognition cannot run; Reason wraps ErrModelNotFound
// or ErrModelLoadFailed.
type Unavailable struct {
	Reason error
}

// Ready carries a usable Service.
type Ready struct {
	Service *Service
}

func (Unavailable) availability() {}
func (Ready) availability()       {}

func (u Unavailable) Error() string {
	if u.Reason == nil {
		return "speech recognition is not available"
	}
	return u.Reason.Error()
}

// Load tries to load the configured model. It never fails the caller: a
// missing or broken model yields Unavailable, with enough logged for the
// user to fix it.
func Load(cfg config.WhisperConfig, log zerolog.Logger, m *metrics.Metrics) Availability {
	path := cfg.ResolvedModelPath()
	log = log.With().Str("model_path", path).Logger()

	if _, err := os.Stat(path); err != nil {
		logMissingModel(log, cfg, path)
		return Unavailable{Reason: fmt.Errorf("%w: %s", ErrModelNotFound, path)}
	}

	model, err := loadWhisperModel(path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load whisper model")
		return Unavailable{Reason: fmt.Errorf("%w: %w", ErrModelLoadFailed, err)}
	}

	log.Info().Str("model", cfg.Model).Msg("Whisper model loaded")
	return Ready{Service: New(model, Options{
		Language: cfg.Language,
		Threads:  cfg.Threads,
	}, log, m)}
}

func logMissingModel(log zerolog.Logger, cfg config.WhisperConfig, path string) {
	dir := filepath.Dir(path)
	ev := log.Warn().Str("models_dir", dir)

	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		ev = ev.Bool("models_dir_exists", false)
	case err == nil:
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		ev = ev.Strs("models_dir_contents", names)
	}

	if url, ok := ModelURL(cfg.Model); ok {
		ev = ev.Str("download_url", url).Str("hint", "run: whisper-capture model download --name "+cfg.Model)
	}
	ev.Msg("Whisper model not found; speech recognition is disabled")
}
