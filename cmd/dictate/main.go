// Command dictate records a short voice clip and sends it to a local audio
// model endpoint for transcription, optionally typing or speaking the
// result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jo-hoe/percept/internal/capture"
	appcfg "github.com/jo-hoe/percept/internal/config"
	"github.com/jo-hoe/percept/internal/exchange"
	"github.com/jo-hoe/percept/internal/output"
	"github.com/jo-hoe/percept/internal/runner"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (default: $PERCEPT_CONFIG, then percept.yaml)")
		prompt     = flag.String("prompt", "", "prompt to send with the recording")
		system     = flag.String("system", "", "system prompt for the model")
		model      = flag.String("model", "", "model identifier")
		endpoint   = flag.String("endpoint", "", "generation endpoint URL")
		outputPath = flag.String("output", "", "recording output path (default: timestamped file, deleted after sending)")
		duration   = flag.Duration("duration", 0, "recording duration")
		sampleRate = flag.Int("sample-rate", 0, "recording sample rate in Hz")
		maxTokens  = flag.Int("max-tokens", 0, "maximum tokens in the response")
		noStream   = flag.Bool("no-stream", false, "disable streaming response")
		keep       = flag.Bool("keep", false, "keep the recording after sending")
		continuous = flag.Bool("continuous", false, "record repeatedly on an interval")
		interval   = flag.Duration("interval", 10*time.Second, "pause between recordings in continuous mode")
		speak      = flag.Bool("speak", false, "read the transcription aloud")
		typeOut    = flag.Bool("type", false, "type the transcription via synthetic keystrokes")
		typeDelay  = flag.Duration("type-delay", 0, "pause before typing starts")
		audioFile  = flag.String("audio-file", "", "use an existing audio file instead of recording")
		logLevel   = flag.String("log-level", "", "log level: debug|info|warn|error")
	)
	flag.Parse()
	flagsSet := setFlags()

	cfg, err := appcfg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dictate: %v\n", err)
		os.Exit(1)
	}
	if !flagsSet["log-level"] {
		*logLevel = cfg.LogLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: appcfg.ParseLogLevel(*logLevel)}))
	slog.SetDefault(logger)

	// Flags win over config values.
	if !flagsSet["prompt"] {
		*prompt = cfg.Dictate.Prompt
	}
	if !flagsSet["system"] {
		*system = cfg.Dictate.System
	}
	if !flagsSet["model"] {
		*model = cfg.Endpoint.Model
	}
	if !flagsSet["endpoint"] {
		*endpoint = cfg.Endpoint.URL
	}
	if !flagsSet["max-tokens"] {
		*maxTokens = cfg.Dictate.MaxTokens
	}
	if !flagsSet["duration"] {
		*duration = cfg.Dictate.Duration
	}
	if !flagsSet["sample-rate"] {
		*sampleRate = cfg.Dictate.SampleRate
	}
	if !flagsSet["type-delay"] {
		*typeDelay = cfg.Dictate.TypeDelay
	}

	client := exchange.New(*endpoint, *model, exchange.ModalityAudio, cfg.Endpoint.RequestTimeout)
	recorder := capture.NewRecorder(logger, cfg.Dictate.RecordingDir, *duration, *sampleRate)

	// Typing takes precedence over speaking when both are requested.
	emitters := output.NewRegistry()
	switch {
	case *typeOut:
		emitters.Add(output.NewTyper(logger, *typeDelay))
	case *speak:
		emitters.Add(output.NewSpeech(logger))
	}

	run := &runner.Runner{
		Log:        logger,
		Source:     runner.SourceFunc(recorder.Record),
		Client:     client,
		Emitters:   emitters,
		Prompt:     *prompt,
		System:     *system,
		Stream:     !*noStream,
		MaxTokens:  *maxTokens,
		OutputPath: *outputPath,
		MediaFile:  *audioFile,
		Keep:       *keep,
		OnChunk:    func(text string) { fmt.Print(text) },
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *continuous {
		_ = run.RunContinuous(ctx, *interval)
		fmt.Println()
		logger.Info("stopping continuous recording")
		return
	}
	if err := run.RunOnce(ctx); err != nil {
		logger.Error("dictate failed", "err", err)
		os.Exit(1)
	}
	fmt.Println()
}

// setFlags reports which flags were given on the command line, so config
// values only fill the gaps.
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}
