package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/petems/whisper-capture/internal/audio"
	"github.com/petems/whisper-capture/internal/capture"
	"github.com/petems/whisper-capture/internal/sink"
	"github.com/petems/whisper-capture/internal/source"
	"github.com/petems/whisper-capture/internal/transcribe"
)

// Mock implementations for testing
type mockModel struct {
	mu       sync.Mutex
	segments []string
	calls    int
	closed   bool
}

func (m *mockModel) Recognize(ctx context.Context, samples []float32, opts transcribe.Options) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.segments, nil
}

func (m *mockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockInjector struct {
	copied []string
}

func (m *mockInjector) Copy(ctx context.Context, text string) error {
	m.copied = append(m.copied, text)
	return nil
}

type mockStatus struct {
	last string
}

func (m *mockStatus) SetIdle() { m.last = "idle" }
func (m *mockStatus) SetRecording(sources []source.Tag) {
	m.last = "recording " + sourceNames(sources)
}
func (m *mockStatus) SetProcessing(tag source.Tag) { m.last = "processing " + tag.String() }
func (m *mockStatus) SetError(err error)           { m.last = "error" }

type fixture struct {
	app    *App
	host   *audio.FakeHost
	reg    *capture.Registry
	model  *mockModel
	inj    *mockInjector
	status *mockStatus
}

func newFixture(t *testing.T, ready bool) *fixture {
	t.Helper()

	host := audio.NewFakeHost()
	reg := capture.NewRegistry(host, capture.Options{
		OutputDir: t.TempDir(),
		Format:    sink.Format{SampleRate: 16000, Channels: 1},
	}, zerolog.Nop(), nil)

	model := &mockModel{segments: []string{" hello", "world "}}
	var rec transcribe.Availability = transcribe.Unavailable{Reason: transcribe.ErrModelNotFound}
	if ready {
		rec = transcribe.Ready{Service: transcribe.New(model, transcribe.Options{Language: "en"}, zerolog.Nop(), nil)}
	}

	inj := &mockInjector{}
	status := &mockStatus{}
	app := New(Config{
		Registry:        reg,
		Recognition:     rec,
		Injector:        inj,
		CopyToClipboard: true,
		Logger:          zerolog.Nop(),
		StatusUpdater:   status,
	})

	return &fixture{app: app, host: host, reg: reg, model: model, inj: inj, status: status}
}

func TestStartStopCapture(t *testing.T) {
	f := newFixture(t, true)

	if err := f.app.StartCapture("local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.reg.Active(source.LocalMicrophone) {
		t.Error("local source should be recording")
	}
	if f.status.last != "recording local" {
		t.Errorf("unexpected status %q", f.status.last)
	}

	if err := f.app.StopCapture("local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.reg.Active(source.LocalMicrophone) {
		t.Error("local source should be stopped")
	}
	if f.status.last != "idle" {
		t.Errorf("unexpected status %q", f.status.last)
	}

	// stopping again is fine
	if err := f.app.StopCapture("local"); err != nil {
		t.Fatalf("stop of an idle source should succeed, got %v", err)
	}
}

func TestUnknownSourceName(t *testing.T) {
	f := newFixture(t, true)

	for _, call := range []func() error{
		func() error { return f.app.StartCapture("speakers") },
		func() error { return f.app.StopCapture("") },
		func() error { _, err := f.app.Transcribe(context.Background(), "both"); return err },
	} {
		if err := call(); !errors.Is(err, source.ErrUnknownSource) {
			t.Errorf("expected ErrUnknownSource, got %v", err)
		}
	}
}

func TestStartCaptureReportsDeviceError(t *testing.T) {
	f := newFixture(t, true)
	f.host.OpenErr = errors.New("device busy")

	err := f.app.StartCapture("remote")
	if !errors.Is(err, capture.ErrStreamBuildFailed) {
		t.Fatalf("expected ErrStreamBuildFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "device busy") {
		t.Errorf("error should carry the device message: %q", err)
	}
	if f.status.last != "error" {
		t.Errorf("unexpected status %q", f.status.last)
	}
}

func TestTranscribeStopsSourceFirst(t *testing.T) {
	f := newFixture(t, true)

	if err := f.app.StartCapture("remote"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.host.Last().Emit(audio.SineWave(440, 16000, 1, 1600))

	text, err := f.app.Transcribe(context.Background(), "remote")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected %q, got %q", "hello world", text)
	}
	if f.reg.Active(source.RemoteAudio) {
		t.Error("transcribe should have stopped the source")
	}
	if len(f.inj.copied) != 1 || f.inj.copied[0] != "hello world" {
		t.Errorf("expected transcript on clipboard, got %q", f.inj.copied)
	}
	if f.status.last != "idle" {
		t.Errorf("unexpected status %q", f.status.last)
	}
}

func TestTranscribeUnavailable(t *testing.T) {
	f := newFixture(t, false)

	if err := f.app.StartCapture("local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.app.Transcribe(context.Background(), "local")
	if !errors.Is(err, ErrRecognitionUnavailable) {
		t.Fatalf("expected ErrRecognitionUnavailable, got %v", err)
	}
	if f.model.Calls() != 0 {
		t.Error("inference must not be attempted without a model")
	}
	if f.reg.Active(source.LocalMicrophone) {
		t.Error("source should still be stopped")
	}
}

func TestTranscribeMissingRecording(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.app.Transcribe(context.Background(), "local")
	if !errors.Is(err, transcribe.ErrFileOpenFailed) {
		t.Fatalf("expected ErrFileOpenFailed, got %v", err)
	}
}

func TestShutdownStopsEverything(t *testing.T) {
	f := newFixture(t, true)

	for _, name := range []string{"local", "remote"} {
		if err := f.app.StartCapture(name); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.app.ActiveSources()) != 0 {
		t.Error("all sources should be stopped")
	}
	for _, s := range f.host.Streams() {
		if !s.Closed() {
			t.Error("every stream should be closed")
		}
	}
	if !f.model.closed {
		t.Error("model should be released")
	}
}

func TestExecCommands(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	out, err := f.app.Exec(ctx, "start mic")
	if err != nil || out != "recording mic" {
		t.Fatalf("start: got %q, %v", out, err)
	}

	out, err = f.app.Exec(ctx, "status")
	if err != nil || out != "recording: local; recognition available" {
		t.Fatalf("status: got %q, %v", out, err)
	}

	out, err = f.app.Exec(ctx, "  TRANSCRIBE   local ")
	if err != nil || out != "hello world" {
		t.Fatalf("transcribe: got %q, %v", out, err)
	}

	out, err = f.app.Exec(ctx, "status")
	if err != nil || out != "idle; recognition available" {
		t.Fatalf("status: got %q, %v", out, err)
	}

	if out, err = f.app.Exec(ctx, ""); err != nil || out != "" {
		t.Fatalf("blank line: got %q, %v", out, err)
	}

	if out, _ = f.app.Exec(ctx, "help"); !strings.Contains(out, "transcribe <local|remote>") {
		t.Fatalf("help missing commands: %q", out)
	}
}

func TestExecErrors(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	if _, err := f.app.Exec(ctx, "record local"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
	if _, err := f.app.Exec(ctx, "start"); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("expected usage error, got %v", err)
	}
	if _, err := f.app.Exec(ctx, "transcribe remote"); !errors.Is(err, ErrRecognitionUnavailable) {
		t.Errorf("expected ErrRecognitionUnavailable, got %v", err)
	}
	out, err := f.app.Exec(ctx, "status")
	if err != nil || out != "idle; recognition unavailable" {
		t.Errorf("status: got %q, %v", out, err)
	}
}
