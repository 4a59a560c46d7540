// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A Transcriber wraps a batch transcription service (e.g., a local
// whisper.cpp server or the OpenAI transcription API). The voice input path
// records one utterance at a time, so a batch interface — one WAV asset in,
// one text out — is all the pipeline needs.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Transcribe converts a complete WAV-encoded utterance into text.
	//
	// An empty transcription result is valid and means no speech was
	// recognised; callers translate that into their own "not understood"
	// marker. Returns an error only when the backend itself fails.
	Transcribe(ctx context.Context, wav []byte) (string, error)
}
