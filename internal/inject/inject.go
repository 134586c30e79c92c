// Package inject hands finished transcripts to the rest of the desktop.
package inject

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
)

// Injector delivers transcript text to the user.
type Injector interface {
	Copy(ctx context.Context, text string) error
}

type clipboardInjector struct {
	write func(string) error
}

// New creates an injector that places text on the system clipboard
func New() Injector {
	return &clipboardInjector{write: clipboard.WriteAll}
}

// Available reports whether a clipboard backend exists (on Linux this needs
// xclip, xsel or wl-copy).
func Available() bool {
	return !clipboard.Unsupported
}

func (c *clipboardInjector) Copy(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.write(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}
