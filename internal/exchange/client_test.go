package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeMediaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "media.png")
	if err := os.WriteFile(path, []byte("mediadata"), 0o600); err != nil {
		t.Fatalf("write media file: %v", err)
	}
	return path
}

func TestSubmit_NonStreaming_TextKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"a description","response":"ignored"}`))
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityImage, time.Second)
	got, err := c.Submit(context.Background(), Request{MediaPath: writeMediaFile(t), Prompt: "describe"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got != "a description" {
		t.Fatalf("result = %q, want %q", got, "a description")
	}
}

func TestSubmit_NonStreaming_ResponseKeyFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"from response key"}`))
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityImage, time.Second)
	got, err := c.Submit(context.Background(), Request{MediaPath: writeMediaFile(t), Prompt: "describe"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got != "from response key" {
		t.Fatalf("result = %q", got)
	}
}

func TestSubmit_NonStreaming_NoKnownKeys_StringForm(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"done"}`))
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityImage, time.Second)
	got, err := c.Submit(context.Background(), Request{MediaPath: writeMediaFile(t), Prompt: "describe"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got != `{"status":"done"}` {
		t.Fatalf("result = %q, want the object's string form", got)
	}
}

func TestSubmit_NonStreaming_NonObjectValue(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"just a string"`))
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityImage, time.Second)
	got, err := c.Submit(context.Background(), Request{MediaPath: writeMediaFile(t), Prompt: "describe"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got != "just a string" {
		t.Fatalf("result = %q", got)
	}
}

func TestSubmit_Streaming_ChunksAccumulate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"chunk\":\"He\"}\n\ndata: {\"chunk\":\"llo\"}\n"))
	}))
	defer ts.Close()

	var chunks []string
	c := New(ts.URL, "test-model", ModalityAudio, time.Second)
	got, err := c.Submit(context.Background(), Request{
		MediaPath: writeMediaFile(t),
		Prompt:    "transcribe",
		Stream:    true,
		OnChunk:   func(s string) { chunks = append(chunks, s) },
	})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got != "Hello" {
		t.Fatalf("result = %q, want %q", got, "Hello")
	}
	if len(chunks) != 2 || chunks[0] != "He" || chunks[1] != "llo" {
		t.Fatalf("incremental chunks = %#v", chunks)
	}
}

func TestSubmit_Streaming_MalformedEventIsLiteralText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: not json at all\ndata: {\"chunk\":\"ok\"}\n"))
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityAudio, time.Second)
	got, err := c.Submit(context.Background(), Request{MediaPath: writeMediaFile(t), Prompt: "transcribe", Stream: true})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got != "not json at all ok" {
		t.Fatalf("result = %q", got)
	}
}

func TestSubmit_Streaming_UnmarkedLinesSpaceJoined(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("first line\nsecond line\n"))
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityAudio, time.Second)
	got, err := c.Submit(context.Background(), Request{MediaPath: writeMediaFile(t), Prompt: "transcribe", Stream: true})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got != "first line second line" {
		t.Fatalf("result = %q", got)
	}
}

func TestSubmit_Streaming_EmptyChunkNotEmitted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"chunk\":\"\"}\ndata: {\"done\":true}\ndata: {\"chunk\":\"end\"}\n"))
	}))
	defer ts.Close()

	var calls int32
	c := New(ts.URL, "test-model", ModalityAudio, time.Second)
	got, err := c.Submit(context.Background(), Request{
		MediaPath: writeMediaFile(t),
		Prompt:    "transcribe",
		Stream:    true,
		OnChunk:   func(string) { atomic.AddInt32(&calls, 1) },
	})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got != "end" {
		t.Fatalf("result = %q", got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("OnChunk calls = %d, want 1", calls)
	}
}

func TestSubmit_PayloadShape(t *testing.T) {
	var seen map[string]any
	var seenContentType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer ts.Close()

	media := writeMediaFile(t)
	c := New(ts.URL, "test-model", ModalityAudio, time.Second)
	if _, err := c.Submit(context.Background(), Request{
		MediaPath: media,
		Prompt:    "transcribe this",
		System:    "be terse",
		MaxTokens: 500,
	}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	if seenContentType != "application/json" {
		t.Fatalf("content type = %q", seenContentType)
	}
	if seen["model"] != "test-model" || seen["prompt"] != "transcribe this" || seen["system"] != "be terse" {
		t.Fatalf("payload fields wrong: %#v", seen)
	}
	if seen["max_tokens"] != float64(500) || seen["stream"] != false {
		t.Fatalf("payload bounds wrong: %#v", seen)
	}
	audio, ok := seen["audio"].([]any)
	if !ok || len(audio) != 1 {
		t.Fatalf("audio attachment not a single-element array: %#v", seen["audio"])
	}
	path, _ := audio[0].(string)
	if !filepath.IsAbs(path) {
		t.Fatalf("media path %q not absolute", path)
	}
	if path != media {
		t.Fatalf("media path = %q, want %q", path, media)
	}
	if _, present := seen["image"]; present {
		t.Fatalf("image key present on audio exchange: %#v", seen)
	}
}

func TestSubmit_SystemOmittedWhenEmpty(t *testing.T) {
	var seen map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&seen)
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityImage, time.Second)
	if _, err := c.Submit(context.Background(), Request{MediaPath: writeMediaFile(t), Prompt: "describe"}); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if _, present := seen["system"]; present {
		t.Fatalf("system key should be omitted, got %#v", seen["system"])
	}
}

func TestSubmit_Non2xxStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityImage, time.Second)
	got, err := c.Submit(context.Background(), Request{MediaPath: writeMediaFile(t), Prompt: "describe"})
	if err == nil {
		t.Fatalf("expected error for non-2xx status, got result %q", got)
	}
	if got != "" {
		t.Fatalf("result should be empty on error, got %q", got)
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("error should carry status and cause: %v", err)
	}
}

func TestSubmit_EmptyPromptRejectedBeforeNetwork(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("server should not be called for an empty prompt")
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityImage, time.Second)
	if _, err := c.Submit(context.Background(), Request{MediaPath: writeMediaFile(t), Prompt: "   "}); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}

func TestSubmit_MissingMediaRejectedBeforeNetwork(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("server should not be called for a missing media file")
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityImage, time.Second)
	missing := filepath.Join(t.TempDir(), "nope.png")
	if _, err := c.Submit(context.Background(), Request{MediaPath: missing, Prompt: "describe"}); err == nil {
		t.Fatalf("expected error for missing media file")
	}
}

func TestSubmit_ContextCancel(t *testing.T) {
	var started int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.StoreInt32(&started, 1)
		time.Sleep(2 * time.Second)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-model", ModalityImage, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := c.Submit(ctx, Request{MediaPath: writeMediaFile(t), Prompt: "describe"}); err == nil {
		t.Fatalf("expected context cancellation error")
	}
	if atomic.LoadInt32(&started) == 0 {
		t.Fatalf("server was not invoked; test invalid")
	}
}

func TestExtractText_NonStringValue(t *testing.T) {
	got := extractText(map[string]any{"text": float64(42)})
	if got != "42" {
		t.Fatalf("extractText non-string = %q", got)
	}
}
