package capture

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/jo-hoe/percept/internal/common"
)

// Screen captures the whole screen to a PNG file.
type Screen struct {
	log  *slog.Logger
	dir  string
	goos string
}

// NewScreen creates a screen capturer writing generated files under dir.
func NewScreen(log *slog.Logger, dir string) *Screen {
	return &Screen{log: log, dir: dir, goos: runtime.GOOS}
}

// Capture grabs the screen and returns the absolute path of the written PNG.
// outputPath overrides the generated timestamped location when non-empty.
func (s *Screen) Capture(ctx context.Context, outputPath string) (string, error) {
	path, err := mediaPath(s.dir, common.ScreenshotPrefix, common.ScreenshotExt, outputPath)
	if err != nil {
		return "", err
	}

	s.log.Info("capturing screenshot")
	if err := runFirstAvailable(ctx, screenChain(s.goos, path)); err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}

	size, err := fileSize(path)
	if err != nil {
		return "", err
	}
	s.log.Info("screenshot saved", "path", path, "size", humanize.Bytes(uint64(size)))
	return path, nil
}

// screenChain returns the capture tools to try for the platform, in
// preference order.
func screenChain(goos, path string) []command {
	switch goos {
	case "darwin":
		// -x silences the shutter sound.
		return []command{
			{name: "screencapture", args: []string{"-x", path}},
		}
	default:
		return []command{
			{name: "gnome-screenshot", args: []string{"-f", path}},
			{name: "import", args: []string{"-window", "root", path}},
			{name: "scrot", args: []string{"-o", path}},
		}
	}
}
