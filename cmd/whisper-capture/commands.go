package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/petems/whisper-capture/internal/app"
	"github.com/petems/whisper-capture/internal/audio"
	"github.com/petems/whisper-capture/internal/capture"
	"github.com/petems/whisper-capture/internal/config"
	"github.com/petems/whisper-capture/internal/inject"
	"github.com/petems/whisper-capture/internal/logging"
	"github.com/petems/whisper-capture/internal/metrics"
	"github.com/petems/whisper-capture/internal/permissions"
	"github.com/petems/whisper-capture/internal/sink"
	"github.com/petems/whisper-capture/internal/transcribe"
)

type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics
	host    audio.Host
	app     *app.App
}

func loadConfig(c *cli.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, logging.NewWithLevel("info"), err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if backend := c.String("backend"); backend != "" {
		cfg.Audio.Backend = backend
		if err := cfg.Validate(); err != nil {
			return nil, logging.NewWithLevel("info"), err
		}
	}

	log := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Console: true,
	})
	return cfg, log, nil
}

// setup builds the full stack. withAudio=false skips the audio host for
// commands that only transcribe files.
func setup(ctx context.Context, c *cli.Command, withAudio bool, status app.StatusUpdater) (*env, error) {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, log: log}
	e.metrics = startMetrics(ctx, cfg.MetricsAddr, log)

	var reg *capture.Registry
	if withAudio {
		// macOS requires explicit microphone approval before capture works
		if err := permissions.EnsureMicrophone(); err != nil {
			return nil, err
		}

		host, err := audio.New(cfg.Audio.Backend)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audio: %w", err)
		}
		e.host = host

		reg = capture.NewRegistry(host, capture.Options{
			OutputDir: cfg.Audio.OutputDir,
			Format:    sink.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels},
			Devices:   cfg.Audio.Devices,
		}, log, e.metrics)
	} else {
		reg = capture.NewRegistry(nil, capture.Options{OutputDir: cfg.Audio.OutputDir}, log, e.metrics)
	}

	var injector inject.Injector
	if cfg.CopyToClipboard || c.Bool("copy") {
		if inject.Available() {
			injector = inject.New()
		} else {
			log.Warn().Msg("Clipboard unavailable; transcripts will not be copied")
		}
	}

	e.app = app.New(app.Config{
		Registry:        reg,
		Recognition:     transcribe.Load(cfg.Whisper, log, e.metrics),
		Injector:        injector,
		CopyToClipboard: injector != nil,
		Logger:          log,
		StatusUpdater:   status,
	})
	return e, nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.app.Shutdown(ctx); err != nil {
		e.log.Error().Err(err).Msg("Shutdown error")
	}
	if e.host != nil {
		if err := e.host.Close(); err != nil {
			e.log.Warn().Err(err).Msg("Failed to close audio host")
		}
	}
}

func startMetrics(ctx context.Context, addr string, log zerolog.Logger) *metrics.Metrics {
	if addr == "" {
		return nil
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	return m
}

func runRecord(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, c, true, nil)
	if err != nil {
		return err
	}
	defer e.close()

	sources := c.StringSlice("source")
	for _, name := range sources {
		if err := e.app.StartCapture(name); err != nil {
			return err
		}
	}

	if d := c.Duration("duration"); d > 0 {
		e.log.Info().Dur("duration", d).Msg("Recording")
		select {
		case <-ctx.Done():
		case <-time.After(d):
		}
	} else {
		e.log.Info().Msg("Recording, press ctrl-c to stop")
		<-ctx.Done()
	}

	for _, name := range sources {
		if !c.Bool("transcribe") {
			if err := e.app.StopCapture(name); err != nil {
				return err
			}
			continue
		}

		// the signal context is done by now
		text, err := e.app.Transcribe(context.WithoutCancel(ctx), name)
		if err != nil {
			return err
		}
		fmt.Printf("[%s] %s\n", name, text)
	}
	return nil
}

func runTranscribe(ctx context.Context, c *cli.Command) error {
	file, name := c.String("file"), c.String("source")
	if (file == "") == (name == "") {
		return errors.New("exactly one of --file or --source is required")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, c, false, nil)
	if err != nil {
		return err
	}
	defer e.close()

	var text string
	if file != "" {
		text, err = e.app.TranscribeFile(ctx, file)
	} else {
		text, err = e.app.Transcribe(ctx, name)
	}
	if err != nil {
		return err
	}

	fmt.Println(text)
	return nil
}

func runDevices(_ context.Context, c *cli.Command) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}

	host, err := audio.New(cfg.Audio.Backend)
	if err != nil {
		return err
	}
	defer host.Close()

	devices, err := host.Devices()
	if err != nil {
		return err
	}

	fmt.Printf("%s input devices:\n", host.Name())
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf(" %s %s\t%s\n", marker, d.ID, d.Name)
	}
	return nil
}

func runModelDownload(ctx context.Context, c *cli.Command) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}

	name := c.String("name")
	if name == "" {
		name = cfg.Whisper.Model
	}
	whisperCfg := cfg.Whisper
	if name != whisperCfg.Model {
		whisperCfg = config.WhisperConfig{Model: name}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dest := whisperCfg.ResolvedModelPath()
	if err := transcribe.DownloadModel(ctx, name, dest, log); err != nil {
		return err
	}
	fmt.Println(dest)
	return nil
}
