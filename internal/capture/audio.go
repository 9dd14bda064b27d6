package capture

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jo-hoe/percept/internal/common"
)

// Recorder records a fixed-duration mono WAV clip from the default
// microphone.
type Recorder struct {
	log        *slog.Logger
	dir        string
	duration   time.Duration
	sampleRate int
	goos       string
}

// NewRecorder creates a recorder writing generated files under dir.
func NewRecorder(log *slog.Logger, dir string, duration time.Duration, sampleRate int) *Recorder {
	return &Recorder{
		log:        log,
		dir:        dir,
		duration:   duration,
		sampleRate: sampleRate,
		goos:       runtime.GOOS,
	}
}

// Record captures audio and returns the absolute path of the written WAV.
// outputPath overrides the generated timestamped location when non-empty.
func (r *Recorder) Record(ctx context.Context, outputPath string) (string, error) {
	path, err := mediaPath(r.dir, common.RecordingPrefix, common.RecordingExt, outputPath)
	if err != nil {
		return "", err
	}

	r.log.Info("recording, speak now", "duration", r.duration, "sample_rate", r.sampleRate)
	if err := runFirstAvailable(ctx, recordChain(r.goos, path, r.duration, r.sampleRate)); err != nil {
		return "", fmt.Errorf("record audio: %w", err)
	}

	size, err := fileSize(path)
	if err != nil {
		return "", err
	}
	r.log.Info("recording saved", "path", path, "size", humanize.Bytes(uint64(size)))
	return path, nil
}

// recordChain returns the recording tools to try for the platform, in
// preference order. All variants produce mono 16-bit PCM WAV at the
// requested rate.
func recordChain(goos, path string, duration time.Duration, sampleRate int) []command {
	secs := strconv.FormatFloat(duration.Seconds(), 'f', -1, 64)
	rate := strconv.Itoa(sampleRate)
	channels := strconv.Itoa(common.RecordingChannels)
	switch goos {
	case "darwin":
		return []command{
			{name: "rec", args: []string{"-q", "-r", rate, "-c", channels, "-b", "16", path, "trim", "0", secs}},
			{name: "ffmpeg", args: []string{"-hide_banner", "-loglevel", "error", "-f", "avfoundation", "-i", ":0", "-t", secs, "-ar", rate, "-ac", channels, "-c:a", "pcm_s16le", "-y", path}},
		}
	default:
		return []command{
			{name: "ffmpeg", args: []string{"-hide_banner", "-loglevel", "error", "-f", "alsa", "-i", "default", "-t", secs, "-ar", rate, "-ac", channels, "-c:a", "pcm_s16le", "-y", path}},
			{name: "arecord", args: []string{"-q", "-d", secs, "-f", "S16_LE", "-r", rate, "-c", channels, path}},
		}
	}
}
