package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/petems/whisper-capture/internal/source"
)

const appName = "whisper-capture"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file"`
	Audio           AudioConfig   `yaml:"audio"`
	Whisper         WhisperConfig `yaml:"whisper"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	CopyToClipboard bool          `yaml:"copy_to_clipboard"`

	path string
}

type AudioConfig struct {
	Backend    string `yaml:"backend"` // "portaudio", "malgo" or "pulse"
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	OutputDir  string `yaml:"output_dir"`
	// Devices maps a source to an input device; unset sources use the
	// default input.
	Devices map[source.Tag]string `yaml:"devices"`
}

type WhisperConfig struct {
	Model     string `yaml:"model"`      // "base.en", "small.en", etc.
	ModelPath string `yaml:"model_path"` // overrides the models directory lookup
	Language  string `yaml:"language"`
	Threads   int    `yaml:"threads"` // 0 lets whisper decide
}

var backends = map[string]bool{"portaudio": true, "malgo": true, "pulse": true}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		LogFile:  filepath.Join(StatePath(), appName+".log"),
		Audio: AudioConfig{
			Backend:    "portaudio",
			SampleRate: 16000,
			Channels:   1,
			OutputDir:  RecordingsPath(),
			Devices:    map[source.Tag]string{},
		},
		Whisper: WhisperConfig{
			Model:    "base.en",
			Language: "en",
		},
	}
}

// Load reads the config from path, or from the platform config path when
// path is empty. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Audio.Devices == nil {
		cfg.Audio.Devices = map[source.Tag]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations no audio host can satisfy.
func (c *Config) Validate() error {
	if !backends[c.Audio.Backend] {
		return fmt.Errorf("%w: unknown audio backend %q", ErrInvalidConfig, c.Audio.Backend)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate must be positive", ErrInvalidConfig)
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("%w: channels must be positive", ErrInvalidConfig)
	}
	if c.Whisper.Threads < 0 {
		return fmt.Errorf("%w: threads must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Save writes the config to the path it was loaded from
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		path = Path()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ResolvedModelPath is the model file whisper loads: ModelPath if set,
// otherwise ggml-<model>.bin in the models directory.
func (w WhisperConfig) ResolvedModelPath() string {
	if w.ModelPath != "" {
		return w.ModelPath
	}
	return filepath.Join(ModelsPath(), "ggml-"+w.Model+".bin")
}

// Path returns the platform-specific config file path
func Path() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, appName, "config.yaml")
}

func dataPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, appName)
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	return filepath.Join(dataPath(), "models")
}

// RecordingsPath is where recordings go unless output_dir is set.
func RecordingsPath() string {
	return filepath.Join(dataPath(), "recordings")
}

// StatePath holds logs.
func StatePath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Logs", appName)
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/state"
		}
	}

	return filepath.Join(base, appName)
}
