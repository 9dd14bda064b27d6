// Package runner drives one capture → exchange → emit → cleanup cycle and
// the sequential continuous mode built on top of it.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jo-hoe/percept/internal/exchange"
	"github.com/jo-hoe/percept/internal/output"
)

// Source produces the media file for one cycle and returns its absolute
// path. outputPath overrides the generated location when non-empty.
type Source interface {
	Acquire(ctx context.Context, outputPath string) (string, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, outputPath string) (string, error)

func (f SourceFunc) Acquire(ctx context.Context, outputPath string) (string, error) {
	return f(ctx, outputPath)
}

// Submitter performs the media exchange.
type Submitter interface {
	Submit(ctx context.Context, req exchange.Request) (string, error)
}

// Runner holds the collaborators and per-run options for one tool
// invocation. One Runner performs cycles strictly sequentially.
type Runner struct {
	Log      *slog.Logger
	Source   Source
	Client   Submitter
	Emitters *output.Registry

	Prompt    string
	System    string
	Stream    bool
	MaxTokens int

	// OutputPath pins the capture to an explicit location; such files are
	// never deleted. MediaFile skips acquisition entirely and uses an
	// existing file, which is likewise never deleted.
	OutputPath string
	MediaFile  string
	Keep       bool

	// OnChunk receives result fragments as they arrive, for live display.
	OnChunk func(text string)
}

// RunOnce performs a single cycle. The captured media file is removed on
// every exit path unless the user asked to keep it, pinned its location, or
// supplied it.
func (r *Runner) RunOnce(ctx context.Context) error {
	log := r.Log.With("exchange_id", uuid.NewString())
	start := time.Now()

	path, cleanup, err := r.acquire(ctx, log)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := r.Client.Submit(ctx, exchange.Request{
		MediaPath: path,
		Prompt:    r.Prompt,
		System:    r.System,
		Stream:    r.Stream,
		MaxTokens: r.MaxTokens,
		OnChunk:   r.OnChunk,
	})
	if err != nil {
		return fmt.Errorf("exchange: %w", err)
	}
	log.Info("exchange completed", "duration", time.Since(start), "chars", len(result))

	r.emit(ctx, log, result)
	return nil
}

func (r *Runner) acquire(ctx context.Context, log *slog.Logger) (string, func(), error) {
	noop := func() {}
	if r.MediaFile != "" {
		if _, err := os.Stat(r.MediaFile); err != nil {
			return "", noop, fmt.Errorf("media file: %w", err)
		}
		log.Info("using existing media file", "path", r.MediaFile)
		return r.MediaFile, noop, nil
	}

	path, err := r.Source.Acquire(ctx, r.OutputPath)
	if err != nil {
		return "", noop, fmt.Errorf("acquire media: %w", err)
	}
	if r.Keep || r.OutputPath != "" {
		return path, noop, nil
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil {
			log.Warn("media cleanup failed", "path", path, "err", err)
			return
		}
		log.Debug("cleaned up media", "path", path)
	}
	return path, cleanup, nil
}

// emit hands a non-empty result to every enabled emitter. Emitter failures
// are reported, not fatal; the exchange itself already succeeded.
func (r *Runner) emit(ctx context.Context, log *slog.Logger, result string) {
	if result == "" || r.Emitters == nil {
		return
	}
	for _, e := range r.Emitters.All() {
		if err := e.Emit(ctx, result); err != nil {
			log.Warn("emitter failed", "emitter", e.Name(), "err", err)
		}
	}
}

// RunContinuous repeats cycles with a fixed sleep between iterations until
// ctx is cancelled. Iterations never overlap. A failed iteration is logged
// and the loop moves on to the next tick.
func (r *Runner) RunContinuous(ctx context.Context, interval time.Duration) error {
	r.Log.Info("starting continuous mode, press Ctrl+C to stop", "interval", interval)
	for iteration := 1; ; iteration++ {
		r.Log.Info("starting cycle", "iteration", iteration)
		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.Log.Error("cycle failed", "iteration", iteration, "err", err)
		}
		r.Log.Info("waiting until next cycle", "interval", interval)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
