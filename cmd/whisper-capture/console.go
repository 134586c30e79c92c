package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/petems/whisper-capture/internal/app"
	"github.com/petems/whisper-capture/internal/source"
)

// consoleStatus prints state changes between command outputs.
type consoleStatus struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *consoleStatus) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *consoleStatus) SetIdle() { s.printf("-- idle\n") }

func (s *consoleStatus) SetRecording(sources []source.Tag) {
	names := make([]string, len(sources))
	for i, t := range sources {
		names[i] = t.String()
	}
	s.printf("-- recording %s\n", strings.Join(names, ", "))
}

func (s *consoleStatus) SetProcessing(tag source.Tag) { s.printf("-- transcribing %s\n", tag) }
func (s *consoleStatus) SetError(err error)           { s.printf("-- error: %v\n", err) }

func runConsole(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	status := &consoleStatus{out: os.Stdout}
	e, err := setup(ctx, c, true, status)
	if err != nil {
		return err
	}
	defer e.close()

	return serveConsole(ctx, e.app, os.Stdin, status)
}

// serveConsole reads commands line by line. Transcriptions run in the
// background so recording can be controlled while whisper works.
func serveConsole(ctx context.Context, a *app.App, in io.Reader, status *consoleStatus) error {
	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := readLines(readCtx, in)

	status.printf("type help for commands\n")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd := strings.ToLower(strings.TrimSpace(line))
			if cmd == "quit" || cmd == "exit" {
				return nil
			}

			if strings.HasPrefix(cmd, "transcribe") {
				wg.Add(1)
				go func() {
					defer wg.Done()
					report(ctx, status, a, line)
				}()
				continue
			}
			report(ctx, status, a, line)
		}
	}
}

// readLines feeds lines from in until it ends or ctx is done, then closes
// the channel.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func report(ctx context.Context, status *consoleStatus, a *app.App, line string) {
	out, err := a.Exec(ctx, line)
	if err != nil {
		status.printf("error: %v\n", err)
		return
	}
	if out != "" {
		status.printf("%s\n", out)
	}
}
