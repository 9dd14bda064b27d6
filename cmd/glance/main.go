// Command glance captures a screenshot and sends it to a local
// vision-language model endpoint for description.
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
		prompt     = flag.String("prompt", "", "prompt to send with the screenshot")
		system     = flag.String("system", "", "system prompt for the model")
		model      = flag.String("model", "", "model identifier")
		endpoint   = flag.String("endpoint", "", "generation endpoint URL")
		outputPath = flag.String("output", "", "screenshot output path (default: timestamped file, deleted after sending)")
		maxTokens  = flag.Int("max-tokens", 0, "maximum tokens in the response")
		noStream   = flag.Bool("no-stream", false, "disable streaming response")
		keep       = flag.Bool("keep", false, "keep the screenshot file after sending")
		continuous = flag.Bool("continuous", false, "capture repeatedly on an interval")
		interval   = flag.Duration("interval", 30*time.Second, "pause between captures in continuous mode")
		speak      = flag.Bool("speak", false, "read the response aloud")
		logLevel   = flag.String("log-level", "", "log level: debug|info|warn|error")
	)
	flag.Parse()
	flagsSet := setFlags()

	cfg, err := appcfg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "glance: %v\n", err)
		os.Exit(1)
	}
	if !flagsSet["log-level"] {
		*logLevel = cfg.LogLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: appcfg.ParseLogLevel(*logLevel)}))
	slog.SetDefault(logger)

	// Flags win over config values.
	if !flagsSet["prompt"] {
		*prompt = cfg.Glance.Prompt
	}
	if !flagsSet["system"] {
		*system = cfg.Glance.System
	}
	if !flagsSet["model"] {
		*model = cfg.Endpoint.Model
	}
	if !flagsSet["endpoint"] {
		*endpoint = cfg.Endpoint.URL
	}
	if !flagsSet["max-tokens"] {
		*maxTokens = cfg.Glance.MaxTokens
	}

	client := exchange.New(*endpoint, *model, exchange.ModalityImage, cfg.Endpoint.RequestTimeout)
	screen := capture.NewScreen(logger, cfg.Glance.ScreenshotDir)

	emitters := output.NewRegistry()
	if *speak {
		emitters.Add(output.NewSpeech(logger))
	}

	run := &runner.Runner{
		Log:        logger,
		Source:     runner.SourceFunc(screen.Capture),
		Client:     client,
		Emitters:   emitters,
		Prompt:     *prompt,
		System:     *system,
		Stream:     !*noStream,
		MaxTokens:  *maxTokens,
		OutputPath: *outputPath,
		Keep:       *keep,
		OnChunk:    func(text string) { fmt.Print(text) },
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *continuous {
		_ = run.RunContinuous(ctx, *interval)
		fmt.Println()
		logger.Info("stopping continuous capture")
		return
	}
	if err := run.RunOnce(ctx); err != nil {
		logger.Error("glance failed", "err", err)
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
