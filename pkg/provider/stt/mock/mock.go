// Package mock provides a test double for the stt.Transcriber interface.
package mock

import (
	"context"
	"sync"

	"github.com/farevoice/farevoice/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// WAV is the audio passed to Transcribe.
	WAV []byte
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Text is returned by Transcribe.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Compile-time check that *Transcriber satisfies stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Transcribe records the call and returns the configured text or error.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{Ctx: ctx, WAV: wav})
	if t.Err != nil {
		return "", t.Err
	}
	return t.Text, nil
}
