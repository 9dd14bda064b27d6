package output

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// Speech reads a result aloud through the platform's speech synthesizer.
type Speech struct {
	log  *slog.Logger
	goos string
}

func NewSpeech(log *slog.Logger) *Speech {
	return &Speech{log: log, goos: runtime.GOOS}
}

func (s *Speech) Name() string { return "speech" }

// Emit speaks the text. An absent synthesizer is reported and skipped.
func (s *Speech) Emit(ctx context.Context, text string) error {
	if isBlank(text) {
		return nil
	}
	name, args, err := speechCommand(s.goos, text)
	if err != nil {
		s.log.Warn("text-to-speech unavailable on this platform", "err", err)
		return nil
	}
	s.log.Info("speaking response")
	if err := runCommand(ctx, name, args...); err != nil {
		return fmt.Errorf("speech synthesis: %w", err)
	}
	return nil
}

func speechCommand(goos, text string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "say", []string{text}, nil
	default:
		for _, tool := range []string{"espeak-ng", "espeak", "spd-say"} {
			if _, err := lookPath(tool); err == nil {
				return tool, []string{text}, nil
			}
		}
		return "", nil, fmt.Errorf("no speech synthesizer found (tried espeak-ng, espeak, spd-say)")
	}
}
