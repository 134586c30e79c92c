package transcribe_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/whisper-capture/internal/config"
	"github.com/petems/whisper-capture/internal/metrics"
	"github.com/petems/whisper-capture/internal/sink"
	"github.com/petems/whisper-capture/internal/transcribe"
)

type fakeModel struct {
	segments []string
	err      error

	calls  atomic.Int32
	mu     sync.Mutex
	last   []float32
	closed bool
}

func (f *fakeModel) Recognize(ctx context.Context, samples []float32, _ transcribe.Options) ([]string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = append([]float32(nil), samples...)
	f.mu.Unlock()
	if f.err != nil {
		return []string{"partial"}, f.err
	}
	return f.segments, nil
}

func (f *fakeModel) Close() error {
	f.closed = true
	return nil
}

func newService(model transcribe.Model) *transcribe.Service {
	return transcribe.New(model, transcribe.Options{Language: "en"}, zerolog.Nop(), metrics.New(nil))
}

func writeFloatWAV(t *testing.T, rate, channels int, samples []float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.wav")
	s, err := sink.Create(path, sink.Format{SampleRate: rate, Channels: channels})
	require.NoError(t, err)
	_, err = s.Write(samples)
	require.NoError(t, err)
	require.NoError(t, s.Finalize())
	return path
}

func writePCM16WAV(t *testing.T, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pcm.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestTranscribeEmptyRecording(t *testing.T) {
	model := &fakeModel{segments: []string{"should not appear"}}
	path := writeFloatWAV(t, 16000, 1, nil)

	text, err := newService(model).Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "", text)
	assert.Zero(t, model.calls.Load(), "no inference for an empty recording")
}

func TestTranscribeSilence(t *testing.T) {
	model := &fakeModel{}
	path := writeFloatWAV(t, 16000, 1, make([]float32, 16000))

	text, err := newService(model).Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "", text)
	assert.EqualValues(t, 1, model.calls.Load())
}

func TestTranscribeJoinsSegments(t *testing.T) {
	model := &fakeModel{segments: []string{" Hello there.", " ", "General Kenobi. "}}
	path := writeFloatWAV(t, 16000, 1, []float32{0.1, 0.2, 0.3})

	text, err := newService(model).Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Hello there. General Kenobi.", text)
}

func TestTranscribeDownmixesStereo(t *testing.T) {
	model := &fakeModel{segments: []string{"ok"}}
	path := writeFloatWAV(t, 16000, 2, []float32{0.5, 0.25, -0.5, 0.5})

	_, err := newService(model).Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.375, 0}, model.last)
}

func TestTranscribeIntegerPCM(t *testing.T) {
	model := &fakeModel{segments: []string{"pcm"}}
	path := writePCM16WAV(t, 16000, 1, []int{16384, -16384, 0})

	text, err := newService(model).Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "pcm", text)
	assert.Equal(t, []float32{0.5, -0.5, 0}, model.last)
}

func TestTranscribeOtherSampleRateStillRuns(t *testing.T) {
	model := &fakeModel{segments: []string{"resampling is not attempted"}}
	path := writeFloatWAV(t, 44100, 1, []float32{0.1})

	text, err := newService(model).Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "resampling is not attempted", text)
}

func TestTranscribeMissingFile(t *testing.T) {
	model := &fakeModel{}
	_, err := newService(model).Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, transcribe.ErrFileOpenFailed)
	assert.Zero(t, model.calls.Load())
}

func TestTranscribeCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	valid := writeFloatWAV(t, 16000, 1, []float32{0.1, 0.2, 0.3, 0.4})
	validBytes, err := os.ReadFile(valid)
	require.NoError(t, err)

	files := map[string][]byte{
		"empty":     {},
		"text":      []byte("this is not a wav file at all, just some text"),
		"truncated": validBytes[:20],
	}

	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".wav")
			require.NoError(t, os.WriteFile(path, data, 0644))

			model := &fakeModel{}
			var text string
			assert.NotPanics(t, func() {
				text, err = newService(model).Transcribe(context.Background(), path)
			})
			assert.ErrorIs(t, err, transcribe.ErrUnsupportedAudioFormat)
			assert.Empty(t, text)
			assert.Zero(t, model.calls.Load())
		})
	}
}

func TestTranscribeUnsupportedBitDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcm8.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 16000, 8, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           []int{1, 2, 3},
		SourceBitDepth: 8,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	_, err = newService(&fakeModel{}).Transcribe(context.Background(), path)
	assert.ErrorIs(t, err, transcribe.ErrUnsupportedAudioFormat)
}

func TestTranscribeInferenceFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("ggml abort")}
	path := writeFloatWAV(t, 16000, 1, []float32{0.1})

	text, err := newService(model).Transcribe(context.Background(), path)
	assert.ErrorIs(t, err, transcribe.ErrInferenceFailed)
	assert.Empty(t, text, "no partial text on failure")
}

func TestTranscribeCancelled(t *testing.T) {
	model := &fakeModel{segments: []string{"late"}}
	path := writeFloatWAV(t, 16000, 1, []float32{0.1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(model).Transcribe(ctx, path)
	assert.ErrorIs(t, err, transcribe.ErrInferenceFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, model.calls.Load())
}

func TestTranscribeConcurrent(t *testing.T) {
	model := &fakeModel{segments: []string{"same"}}
	svc := newService(model)
	path := writeFloatWAV(t, 16000, 1, []float32{0.1, 0.2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := svc.Transcribe(context.Background(), path)
			assert.NoError(t, err)
			assert.Equal(t, "same", text)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 8, model.calls.Load())
}

func TestServiceCloseReleasesModel(t *testing.T) {
	model := &fakeModel{}
	require.NoError(t, newService(model).Close())
	assert.True(t, model.closed)
}

func TestLoadMissingModelIsUnavailable(t *testing.T) {
	cfg := config.WhisperConfig{
		Model:     "base.en",
		ModelPath: filepath.Join(t.TempDir(), "models", "ggml-base.en.bin"),
		Language:  "en",
	}

	switch a := transcribe.Load(cfg, zerolog.Nop(), nil).(type) {
	case transcribe.Unavailable:
		assert.ErrorIs(t, a.Reason, transcribe.ErrModelNotFound)
		assert.Contains(t, a.Error(), "ggml-base.en.bin")
	case transcribe.Ready:
		t.Fatal("expected Unavailable for a missing model")
	}
}
