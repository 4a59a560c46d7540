package pipeline

import "errors"

// Error taxonomy for the response pipeline. Only ErrModelUnavailable aborts a
// turn before commit; synthesis and playback failures degrade the turn to
// text-only, and image generation failures are swallowed entirely.
var (
	// ErrModelUnavailable indicates a network, auth, or model error during
	// either resolution round. The turn is not committed.
	ErrModelUnavailable = errors.New("pipeline: model unavailable")

	// ErrSynthesisFailed indicates text-to-speech synthesis failed. The turn
	// is still committed as text-only.
	ErrSynthesisFailed = errors.New("pipeline: speech synthesis failed")

	// ErrPlaybackFailed indicates audio playback failed after a successful
	// synthesis. Playback runs detached, so this only ever surfaces in logs.
	ErrPlaybackFailed = errors.New("pipeline: audio playback failed")
)
