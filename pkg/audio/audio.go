// Package audio defines the local audio platform abstractions used by the
// voice pipeline: a Player for speaker output and a Recorder for microphone
// capture.
//
// Both are thin collaborator contracts — the pipeline never inspects audio
// bytes, it only moves finished assets between synthesis, playback, and
// transcription. Implementations live in subpackages (execio for real
// system-tool backed I/O, mock for tests).
package audio

import "context"

// Player plays back a complete encoded audio asset.
type Player interface {
	// Play blocks until playback of the asset finishes or ctx is cancelled.
	// The pipeline invokes Play on a detached goroutine, so blocking here
	// never stalls a turn.
	Play(ctx context.Context, asset []byte) error
}

// Recorder captures one utterance from the microphone.
type Recorder interface {
	// Record blocks until an utterance has been captured (silence detection or
	// a fixed window, implementation-defined) and returns it as a WAV asset.
	// Returns an error if the capture device is unavailable.
	Record(ctx context.Context) ([]byte, error)
}
