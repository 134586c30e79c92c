package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperModel wraps a whisper.cpp model. The bindings run every context
// against the model's single inference state, so Process and the segment
// reads that follow it are serialized.
type whisperModel struct {
	model whisper.Model
	path  string

	mu sync.Mutex
}

func loadWhisperModel(path string) (*whisperModel, error) {
	model, err := whisper.New(path)
	if err != nil {
		return nil, err
	}
	return &whisperModel{model: model, path: path}, nil
}

func (w *whisperModel) Recognize(ctx context.Context, samples []float32, opts Options) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil, errors.New("model closed")
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	if err := configure(wctx, opts); err != nil {
		return nil, err
	}
	// whisper cannot be interrupted once Process starts
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := wctx.Process(samples, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper process failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var segments []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read segment: %w", err)
		}
		segments = append(segments, segment.Text)
	}

	return segments, nil
}

// decodeParams is the part of whisper.Context that configure touches.
type decodeParams interface {
	SetThreads(uint)
	SetLanguage(string) error
	SetTranslate(bool)
	IsMultilingual() bool
}

// configure applies opts to a fresh context. English-only models accept no
// language, so the setting only reaches multilingual ones.
func configure(wctx decodeParams, opts Options) error {
	if opts.Threads > 0 {
		wctx.SetThreads(uint(opts.Threads))
	}
	if opts.Language != "" && wctx.IsMultilingual() {
		err := wctx.SetLanguage(opts.Language)
		if err != nil && !errors.Is(err, whisper.ErrModelNotMultilingual) {
			return fmt.Errorf("failed to set language %q: %w", opts.Language, err)
		}
	}
	wctx.SetTranslate(false)
	return nil
}

func (w *whisperModel) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		err := w.model.Close()
		w.model = nil
		return err
	}
	return nil
}
