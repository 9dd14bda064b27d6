package common

// Shared constants to enforce DRY and avoid magic strings/numbers.

// HTTP headers and content types
const (
	HeaderContentType = "Content-Type"
	ContentTypeJSON   = "application/json"
)

// Generation endpoint defaults
const (
	DefaultEndpointURL = "http://localhost:8000/generate"
	DefaultModel       = "mlx-community/gemma-3n-E2B-it-4bit"
)

// Payload media keys. The endpoint expects exactly one attachment per
// request, carried as a single-element array under the modality key.
const (
	MediaKeyImage = "image"
	MediaKeyAudio = "audio"
)

// Generation limits
const (
	DefaultGlanceMaxTokens  = 1000
	DefaultDictateMaxTokens = 500
)

// Recording parameters
const (
	DefaultSampleRateHz = 16000
	RecordingChannels   = 1
)

// Subdirectory names for generated media
const (
	ScreenshotsDirName = "screenshots"
	RecordingsDirName  = "recordings"
)

// Media file naming
const (
	ScreenshotPrefix = "screenshot_"
	RecordingPrefix  = "recording_"
	TimestampLayout  = "20060102_150405"
	ScreenshotExt    = ".png"
	RecordingExt     = ".wav"
)
