package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/petems/whisper-capture/internal/audio"
	"github.com/petems/whisper-capture/internal/transcribe"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:        "whisper-capture",
		Usage:       "record local and remote audio and transcribe it with whisper",
		Version:     fmt.Sprintf("%s (%s)", Version, Commit),
		Description: "captures microphone and system audio into per-source WAV files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "yaml config file (defaults to the platform config path)",
				Sources: cli.EnvVars("WHISPER_CAPTURE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: fmt.Sprintf("override the audio backend %v", audio.Backends()),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "record",
				Usage: "record sources until interrupted or for a fixed duration",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "source",
						Usage: "source to record: local or remote (repeatable)",
						Value: []string{"local"},
					},
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "stop after this long (0 waits for ctrl-c)",
					},
					&cli.BoolFlag{
						Name:  "transcribe",
						Usage: "print a transcript of each source when done",
					},
				},
				Action: runRecord,
			},
			{
				Name:  "transcribe",
				Usage: "transcribe a WAV file or the last recording of a source",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "WAV file to transcribe",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "transcribe the last recording of this source",
					},
					&cli.BoolFlag{
						Name:  "copy",
						Usage: "copy the transcript to the clipboard",
					},
				},
				Action: runTranscribe,
			},
			{
				Name:   "devices",
				Usage:  "list input devices of the audio backend",
				Action: runDevices,
			},
			{
				Name:  "model",
				Usage: "manage whisper models",
				Commands: []*cli.Command{
					{
						Name:  "download",
						Usage: "download a ggml model from Hugging Face",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "name",
								Usage: fmt.Sprintf("model name %v (defaults to the configured model)", transcribe.KnownModels()),
							},
							&cli.DurationFlag{
								Name:  "timeout",
								Usage: "give up after this long",
								Value: 30 * time.Minute,
							},
						},
						Action: runModelDownload,
					},
				},
			},
			{
				Name:   "console",
				Usage:  "interactive start/stop/transcribe loop on stdin",
				Action: runConsole,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
