// Package capture acquires local media through native OS utilities: screen
// grabs for the visual tool and microphone recordings for the audio tool.
// Tools are tried in a platform-specific preference order; a failing tool
// falls back to the next one in the chain.
package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jo-hoe/percept/internal/common"
)

// command is one runnable capture tool invocation.
type command struct {
	name string
	args []string
}

// Seams for tests; production code always uses the real exec functions.
var (
	lookPath   = exec.LookPath
	runCommand = func(ctx context.Context, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
	now = time.Now
)

// mediaPath resolves where a capture should be written. An explicit override
// is used as-is (made absolute); otherwise a timestamped file name is
// generated under dir, which is created on demand.
func mediaPath(dir, prefix, ext, override string) (string, error) {
	if override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve output path: %w", err)
		}
		return abs, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure media dir: %w", err)
	}
	name := prefix + now().Format(common.TimestampLayout) + ext
	abs, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("resolve media path: %w", err)
	}
	return abs, nil
}

// runFirstAvailable walks the tool chain and runs the first tool present on
// PATH; if that tool errors, the next one is tried. Exhaustion of the chain
// is an error.
func runFirstAvailable(ctx context.Context, chain []command) error {
	if len(chain) == 0 {
		return fmt.Errorf("no capture tool configured for this platform")
	}
	var lastErr error
	tried := 0
	for _, c := range chain {
		if _, err := lookPath(c.name); err != nil {
			continue
		}
		tried++
		if err := runCommand(ctx, c.name, c.args...); err != nil {
			lastErr = fmt.Errorf("%s: %w", c.name, err)
			continue
		}
		return nil
	}
	if tried == 0 {
		names := make([]string, 0, len(chain))
		for _, c := range chain {
			names = append(names, c.name)
		}
		return fmt.Errorf("none of the capture tools %v found on PATH", names)
	}
	return lastErr
}

// fileSize returns the size of a written capture, verifying it exists and is
// non-empty.
func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat capture: %w", err)
	}
	if fi.Size() == 0 {
		return 0, fmt.Errorf("capture %s is empty", path)
	}
	return fi.Size(), nil
}
