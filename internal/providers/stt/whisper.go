package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError carries the HTTP status and response body of a failed
// transcription call; the relay logs these in its periodic diagnostics.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transcription api: status %d: %s", e.StatusCode, e.Body)
}

// Whisper talks to an OpenAI-compatible /audio/transcriptions endpoint.
type Whisper struct {
	http  *resty.Client
	model string
}

func NewWhisper(baseURL, apiKey, model string) *Whisper {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetTimeout(30 * time.Second)
	return &Whisper{http: c, model: model}
}

func (w *Whisper) Close() error { return nil }

func (w *Whisper) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}

	form := map[string]string{
		"model":           w.model,
		"response_format": "json",
		"temperature":     "0", // deterministic decoding
	}
	if language != "" {
		form["language"] = language
	}

	resp, err := w.http.R().
		SetContext(ctx).
		SetFileReader("file", fileNameFor(mimeType), bytes.NewReader(audio)).
		SetFormData(form).
		SetResult(&out).
		Post("/audio/transcriptions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return out.Text, nil
}

func fileNameFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "wav"):
		return "segment.wav"
	case strings.Contains(mimeType, "webm"):
		return "segment.webm"
	case strings.Contains(mimeType, "ogg"):
		return "segment.ogg"
	case strings.Contains(mimeType, "mp4"):
		return "segment.mp4"
	default:
		return "segment.bin"
	}
}
