// Package mock provides test doubles for the audio.Player and audio.Recorder
// interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/farevoice/farevoice/pkg/audio"
)

// Compile-time assertions.
var (
	_ audio.Player   = (*Player)(nil)
	_ audio.Recorder = (*Recorder)(nil)
)

// PlayCall records a single invocation of Play.
type PlayCall struct {
	// Ctx is the context passed to Play.
	Ctx context.Context
	// Asset is the audio passed to Play.
	Asset []byte
}

// Player is a mock implementation of audio.Player.
type Player struct {
	mu sync.Mutex

	// Err, if non-nil, is returned as the error from Play.
	Err error

	// Block, if non-nil, is closed by the test to let Play return. Use it to
	// verify that playback runs detached from the pipeline.
	Block chan struct{}

	// PlayCalls records every call to Play in order.
	PlayCalls []PlayCall
}

// Play records the call, optionally blocks on Block, and returns Err.
func (p *Player) Play(ctx context.Context, asset []byte) error {
	p.mu.Lock()
	p.PlayCalls = append(p.PlayCalls, PlayCall{Ctx: ctx, Asset: asset})
	block := p.Block
	err := p.Err
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// CallCount returns the number of recorded Play calls.
func (p *Player) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.PlayCalls)
}

// Recorder is a mock implementation of audio.Recorder.
type Recorder struct {
	mu sync.Mutex

	// WAV is returned by Record.
	WAV []byte

	// Err, if non-nil, is returned as the error from Record.
	Err error

	// RecordCalls counts invocations of Record.
	RecordCalls int
}

// Record records the call and returns the configured WAV or error.
func (r *Recorder) Record(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.RecordCalls++
	if r.Err != nil {
		return nil, r.Err
	}
	return r.WAV, nil
}
