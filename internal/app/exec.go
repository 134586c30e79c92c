package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCommand is returned by Exec for lines it cannot parse.
var ErrUnknownCommand = errors.New("unknown command")

const helpText = `commands:
  start <local|remote>       begin recording a source
  stop <local|remote>        stop recording a source
  transcribe <local|remote>  stop a source and print its transcript
  status                     list recording sources
  help                       show this message`

// Exec runs one console command line and returns its output.
func (a *App) Exec(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "start", "stop", "transcribe":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: %s <local|remote>", cmd)
		}
	}

	switch cmd {
	case "start":
		if err := a.StartCapture(args[0]); err != nil {
			return "", err
		}
		return "recording " + args[0], nil
	case "stop":
		if err := a.StopCapture(args[0]); err != nil {
			return "", err
		}
		return "stopped " + args[0], nil
	case "transcribe":
		return a.Transcribe(ctx, args[0])
	case "status":
		active := a.ActiveSources()
		recognition := "available"
		if !a.RecognitionAvailable() {
			recognition = "unavailable"
		}
		if len(active) == 0 {
			return "idle; recognition " + recognition, nil
		}
		return fmt.Sprintf("recording: %s; recognition %s", sourceNames(active), recognition), nil
	case "help", "?":
		return helpText, nil
	default:
		return "", fmt.Errorf("%w: %q (try help)", ErrUnknownCommand, cmd)
	}
}
