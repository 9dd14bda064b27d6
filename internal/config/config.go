package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/percept/internal/common"
)

// Config is the root configuration loaded from YAML. Both binaries share one
// file; each reads its own section plus the endpoint settings.
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
	Glance   GlanceConfig   `yaml:"glance"`
	Dictate  DictateConfig  `yaml:"dictate"`
	LogLevel string         `yaml:"logLevel"` // debug|info|warn|error
}

// EndpointConfig holds the generation endpoint settings.
type EndpointConfig struct {
	URL            string        `yaml:"url"`            // e.g. http://localhost:8000/generate
	Model          string        `yaml:"model"`          // model identifier passed through to the endpoint
	RequestTimeout time.Duration `yaml:"requestTimeout"` // 0 disables the client timeout; streamed replies can be long
}

// GlanceConfig holds screenshot-analysis settings.
type GlanceConfig struct {
	Prompt        string `yaml:"prompt"`        // instruction sent with the screenshot
	System        string `yaml:"system"`        // optional system prompt
	MaxTokens     int    `yaml:"maxTokens"`     // generation bound, passed through unvalidated
	ScreenshotDir string `yaml:"screenshotDir"` // where generated screenshots are written
}

// DictateConfig holds voice-transcription settings.
type DictateConfig struct {
	Prompt       string        `yaml:"prompt"`       // instruction sent with the recording
	System       string        `yaml:"system"`       // optional system prompt
	MaxTokens    int           `yaml:"maxTokens"`    // generation bound, passed through unvalidated
	RecordingDir string        `yaml:"recordingDir"` // where recordings are written
	Duration     time.Duration `yaml:"duration"`     // recording length
	SampleRate   int           `yaml:"sampleRate"`   // recording sample rate in Hz
	TypeDelay    time.Duration `yaml:"typeDelay"`    // pause before keystroke injection starts
}

// Default instruction strings, matching the behavior users expect from the
// tools out of the box.
const (
	DefaultGlancePrompt  = "Please analyze this screenshot and describe what you see."
	DefaultGlanceSystem  = "You are a helpful assistant."
	DefaultDictatePrompt = "Transcribe the speech in this audio file. Only output the transcribed text, nothing else."
	DefaultDictateSystem = "You are a transcription assistant. Transcribe the audio accurately and output only the transcribed text."
)

const (
	defaultRecordingDuration = 5 * time.Second
	defaultTypeDelay         = 3 * time.Second
	defaultConfigFile        = "percept.yaml"
	configPathEnvVar         = "PERCEPT_CONFIG"
)

// Load reads YAML config from path, expands environment variables, and
// validates it. If path is empty, it tries the PERCEPT_CONFIG env var, then
// the default "percept.yaml". The tools must work with no config file at
// all, so a missing default file yields pure defaults; a missing explicit
// path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		if env := os.Getenv(configPathEnvVar); env != "" {
			path = env
			explicit = true
		} else {
			path = defaultConfigFile
		}
	}
	var cfg Config
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - reading sanitized config file path is expected
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			applyDefaults(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	// Expand environment variables in file content.
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	// Endpoint defaults
	if strings.TrimSpace(cfg.Endpoint.URL) == "" {
		cfg.Endpoint.URL = common.DefaultEndpointURL
	}
	if strings.TrimSpace(cfg.Endpoint.Model) == "" {
		cfg.Endpoint.Model = common.DefaultModel
	}

	// Glance defaults
	if strings.TrimSpace(cfg.Glance.Prompt) == "" {
		cfg.Glance.Prompt = DefaultGlancePrompt
	}
	if strings.TrimSpace(cfg.Glance.System) == "" {
		cfg.Glance.System = DefaultGlanceSystem
	}
	if cfg.Glance.MaxTokens <= 0 {
		cfg.Glance.MaxTokens = common.DefaultGlanceMaxTokens
	}
	if strings.TrimSpace(cfg.Glance.ScreenshotDir) == "" {
		cfg.Glance.ScreenshotDir = common.ScreenshotsDirName
	}

	// Dictate defaults
	if strings.TrimSpace(cfg.Dictate.Prompt) == "" {
		cfg.Dictate.Prompt = DefaultDictatePrompt
	}
	if strings.TrimSpace(cfg.Dictate.System) == "" {
		cfg.Dictate.System = DefaultDictateSystem
	}
	if cfg.Dictate.MaxTokens <= 0 {
		cfg.Dictate.MaxTokens = common.DefaultDictateMaxTokens
	}
	if strings.TrimSpace(cfg.Dictate.RecordingDir) == "" {
		cfg.Dictate.RecordingDir = common.RecordingsDirName
	}
	if cfg.Dictate.Duration <= 0 {
		cfg.Dictate.Duration = defaultRecordingDuration
	}
	if cfg.Dictate.SampleRate <= 0 {
		cfg.Dictate.SampleRate = common.DefaultSampleRateHz
	}
	if cfg.Dictate.TypeDelay <= 0 {
		cfg.Dictate.TypeDelay = defaultTypeDelay
	}

	// Default log level
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
}

// ParseLogLevel maps a config/flag level string to a slog level. Unknown
// values fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validate(cfg *Config) error {
	u := strings.TrimSpace(cfg.Endpoint.URL)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("endpoint.url must be an http(s) URL, got %q", cfg.Endpoint.URL)
	}
	if cfg.Endpoint.RequestTimeout < 0 {
		return fmt.Errorf("endpoint.requestTimeout must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logLevel %q", cfg.LogLevel)
	}
	return nil
}
