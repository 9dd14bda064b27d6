// Package output delivers an accumulated result to the user: speech
// synthesis and synthetic keystrokes. Emitters are best-effort; a missing
// platform tool is reported, never fatal.
package output

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Emitter consumes a finished result text.
type Emitter interface {
	Name() string
	// Emit must be a no-op for empty or whitespace-only text.
	Emit(ctx context.Context, text string) error
}

// Registry holds the emitters enabled for a run, in emission order.
type Registry struct {
	emitters []Emitter
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(e Emitter) {
	r.emitters = append(r.emitters, e)
}

func (r *Registry) All() []Emitter {
	return r.emitters
}

// Seams for tests; production code always uses the real exec functions.
var (
	lookPath   = exec.LookPath
	runCommand = func(ctx context.Context, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
	sleep = func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
)

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
