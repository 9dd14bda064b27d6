package output

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
)

// Typer injects a result as synthetic keystrokes into whatever window holds
// focus once the pre-delay elapses.
type Typer struct {
	log   *slog.Logger
	delay time.Duration
	goos  string
}

// NewTyper creates a typer that waits delay before the first keystroke so
// the user can switch to the target window.
func NewTyper(log *slog.Logger, delay time.Duration) *Typer {
	return &Typer{log: log, delay: delay, goos: runtime.GOOS}
}

func (t *Typer) Name() string { return "typer" }

// Emit types out the text after the configured delay.
func (t *Typer) Emit(ctx context.Context, text string) error {
	if isBlank(text) {
		return nil
	}
	t.log.Info("switch to your target window, typing starts soon", "delay", t.delay)
	if err := sleep(ctx, t.delay); err != nil {
		return err
	}
	name, args, err := typeCommand(t.goos, text)
	if err != nil {
		t.log.Warn("keystroke injection unavailable on this platform", "err", err)
		return nil
	}
	if err := runCommand(ctx, name, args...); err != nil {
		return fmt.Errorf("keystroke injection: %w", err)
	}
	t.log.Info("done typing")
	return nil
}

func typeCommand(goos, text string) (string, []string, error) {
	switch goos {
	case "darwin":
		script := fmt.Sprintf(`tell application "System Events" to keystroke %s`, appleScriptString(text))
		return "osascript", []string{"-e", script}, nil
	default:
		if _, err := lookPath("xdotool"); err != nil {
			return "", nil, fmt.Errorf("xdotool not found")
		}
		// --delay paces keypresses so target applications keep up.
		return "xdotool", []string{"type", "--delay", "50", "--", text}, nil
	}
}

// appleScriptString quotes text as an AppleScript string literal.
func appleScriptString(text string) string {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
