package stt

import "context"

type Provider interface {
	// Transcribe uploads one audio segment and returns the recognized text.
	// mimeType describes the segment encoding (e.g. "audio/wav", "audio/webm").
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, error)
	Close() error
}
