package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/whisper-capture/internal/source"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "portaudio", cfg.Audio.Backend)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, "base.en", cfg.Whisper.Model)
	assert.Equal(t, "en", cfg.Whisper.Language)
	assert.NotNil(t, cfg.Audio.Devices)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
audio:
  backend: pulse
  sample_rate: 44100
  channels: 2
  output_dir: /tmp/rec
  devices:
    remote: "@DEFAULT_MONITOR@"
    mic: alsa_input.usb
whisper:
  model: small.en
  threads: 4
copy_to_clipboard: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "pulse", cfg.Audio.Backend)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 2, cfg.Audio.Channels)
	assert.Equal(t, "/tmp/rec", cfg.Audio.OutputDir)
	assert.Equal(t, "@DEFAULT_MONITOR@", cfg.Audio.Devices[source.RemoteAudio])
	assert.Equal(t, "alsa_input.usb", cfg.Audio.Devices[source.LocalMicrophone])
	assert.Equal(t, "small.en", cfg.Whisper.Model)
	assert.Equal(t, "en", cfg.Whisper.Language, "unset keys keep their defaults")
	assert.Equal(t, 4, cfg.Whisper.Threads)
	assert.True(t, cfg.CopyToClipboard)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "audio:\n  backend: jack\n"},
		{"zero rate", "audio:\n  sample_rate: 0\n"},
		{"negative channels", "audio:\n  channels: -1\n"},
		{"unknown source", "audio:\n  devices:\n    speakers: x\n"},
		{"not yaml", "audio: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Audio.Devices[source.RemoteAudio] = "monitor"
	cfg.Whisper.Model = "medium.en"
	require.NoError(t, cfg.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "monitor", loaded.Audio.Devices[source.RemoteAudio])
	assert.Equal(t, "medium.en", loaded.Whisper.Model)
}

func TestResolvedModelPath(t *testing.T) {
	w := WhisperConfig{Model: "base.en"}
	assert.Equal(t, filepath.Join(ModelsPath(), "ggml-base.en.bin"), w.ResolvedModelPath())

	w.ModelPath = "/opt/models/custom.bin"
	assert.Equal(t, "/opt/models/custom.bin", w.ResolvedModelPath())
}

func TestPathsHonorXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG paths apply to linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	assert.Equal(t, "/xdg/config/whisper-capture/config.yaml", Path())
	assert.Equal(t, "/xdg/data/whisper-capture/models", ModelsPath())
	assert.Equal(t, "/xdg/data/whisper-capture/recordings", RecordingsPath())
}
