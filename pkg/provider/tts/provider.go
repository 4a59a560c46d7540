// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., OpenAI speech or
// ElevenLabs) and presents a uniform batch interface: Synthesize converts a
// complete reply text into a single finished audio asset. The narration stage
// deliberately waits for the whole asset before playback starts, so a batch
// API — rather than a streaming one — is the right shape here.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// VoiceProfile describes a TTS voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier (e.g., "onyx").
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 0 = provider default).
	SpeedFactor float64
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis requests
// may run in parallel.
type Provider interface {
	// Synthesize converts text into a complete encoded audio asset using the
	// given voice. The returned bytes are a fully playable asset (the encoding
	// is provider-specific; MP3 for OpenAI, raw PCM for ElevenLabs).
	//
	// Returns an error if synthesis fails or ctx is cancelled before the asset
	// is complete. An empty text input is an error — callers should skip
	// narration for empty replies instead.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)
}
