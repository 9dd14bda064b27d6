// Package exchange implements the request/response cycle against a local
// generation endpoint: it posts a JSON payload referencing a media file on
// the shared host and consumes the reply either as one JSON value or as a
// line/SSE stream, accumulating a single text result.
package exchange

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jo-hoe/percept/internal/common"
)

// Modality selects the payload key the media path is attached under.
type Modality string

const (
	ModalityImage Modality = common.MediaKeyImage
	ModalityAudio Modality = common.MediaKeyAudio
)

const (
	// SSE event prefix on streamed lines.
	streamMarker = "data: "

	// Limits
	errorSnippetLimit = 400
	maxStreamLineSize = 1 << 20
)

// Client talks to one generation endpoint for one modality.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	modality   Modality
}

// Request describes a single exchange.
type Request struct {
	MediaPath string // local media file; made absolute before transmission
	Prompt    string // instruction text, must be non-empty
	System    string // optional system instruction; omitted from the payload when empty
	Stream    bool   // selects streamed vs whole-JSON consumption
	MaxTokens int    // generation bound, passed through unvalidated

	// OnChunk, when set, receives each extracted fragment as it arrives so
	// callers can display the reply live. The accumulated result is returned
	// by Submit regardless.
	OnChunk func(text string)
}

// New creates a client for the given endpoint and modality. A zero timeout
// disables the client-side deadline; streamed replies have no natural upper
// bound.
func New(endpoint, model string, modality Modality, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		model:      model,
		modality:   modality,
	}
}

// generationRequest is the wire payload. The media path travels as a
// single-element array under the modality key; the endpoint runs on the same
// host and reads the file itself.
type generationRequest struct {
	Model     string   `json:"model"`
	Image     []string `json:"image,omitempty"`
	Audio     []string `json:"audio,omitempty"`
	Prompt    string   `json:"prompt"`
	System    string   `json:"system,omitempty"`
	Stream    bool     `json:"stream"`
	MaxTokens int      `json:"max_tokens"`
}

// streamEvent is the JSON body of a "data: " stream line.
type streamEvent struct {
	Chunk string `json:"chunk"`
}

// Submit performs one exchange and returns the accumulated, trimmed result
// text. Transport failures and non-2xx statuses are returned as errors;
// malformed streamed lines are not errors and degrade to literal text.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	absPath, err := filepath.Abs(req.MediaPath)
	if err != nil {
		return "", fmt.Errorf("resolve media path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return "", fmt.Errorf("media file: %w", err)
	}

	payload := generationRequest{
		Model:     c.model,
		Prompt:    req.Prompt,
		System:    req.System,
		Stream:    req.Stream,
		MaxTokens: req.MaxTokens,
	}
	switch c.modality {
	case ModalityAudio:
		payload.Audio = []string{absPath}
	default:
		payload.Image = []string{absPath}
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set(common.HeaderContentType, common.ContentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("post %s: %w", c.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetLimit))
		return "", fmt.Errorf("endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if req.Stream {
		return consumeStream(resp.Body, req.OnChunk)
	}
	return consumeJSON(resp.Body, req.OnChunk)
}

// consumeJSON parses the whole body as one JSON value and extracts the
// result text from it.
func consumeJSON(r io.Reader, onChunk func(string)) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	text := strings.TrimSpace(extractText(value))
	if onChunk != nil && text != "" {
		onChunk(text)
	}
	return text, nil
}

// resultKeys are probed in order on structured responses. The text-first
// order follows the convention of local generation servers, not any general
// contract.
var resultKeys = []string{"text", "response"}

func extractText(value any) string {
	obj, ok := value.(map[string]any)
	if !ok {
		return stringify(value)
	}
	for _, key := range resultKeys {
		field, ok := obj[key]
		if !ok {
			continue
		}
		return stringify(field)
	}
	return stringify(obj)
}

// stringify renders a decoded JSON value as plain text: strings pass
// through, everything else is re-encoded compactly.
func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(encoded)
}

// consumeStream reads the body line by line. Blank lines are skipped;
// "data: "-prefixed lines carry a JSON chunk, anything else (including a
// marker line whose remainder is not valid JSON) is accumulated as literal
// text with a separating space.
func consumeStream(r io.Reader, onChunk func(string)) (string, error) {
	emit := func(s string) {
		if onChunk != nil && s != "" {
			onChunk(s)
		}
	}

	var acc strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rest, marked := strings.CutPrefix(line, streamMarker)
		if marked {
			var event streamEvent
			if err := json.Unmarshal([]byte(rest), &event); err == nil {
				if event.Chunk != "" {
					acc.WriteString(event.Chunk)
					emit(event.Chunk)
				}
				continue
			}
			// Not JSON after the marker; keep the raw text instead of
			// failing the whole stream.
		}
		acc.WriteString(rest)
		acc.WriteString(" ")
		emit(rest)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return strings.TrimSpace(acc.String()), nil
}
