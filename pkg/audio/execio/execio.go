// Package execio implements the audio.Player and audio.Recorder interfaces by
// shelling out to common system audio tools (ffplay/ffmpeg, with afplay and
// sox fallbacks on macOS/Linux).
//
// Shelling out keeps the binary free of cgo audio bindings while still giving
// real playback and capture on a developer machine. Each call spawns a short-
// lived process; the pipeline's fire-and-forget playback model means process
// lifetime never blocks a turn.
package execio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/farevoice/farevoice/pkg/audio"
)

// defaultRecordWindow caps a single capture when the recording tool does not
// detect silence on its own.
const defaultRecordWindow = 10 * time.Second

// Compile-time assertions.
var (
	_ audio.Player   = (*Player)(nil)
	_ audio.Recorder = (*Recorder)(nil)
)

// playerCandidates lists playback commands in preference order. Each receives
// the asset path as its final argument.
var playerCandidates = [][]string{
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
	{"afplay"},
	{"aplay", "-q"},
}

// Player plays audio assets through whichever system playback tool is
// installed. The zero value is usable.
type Player struct{}

// NewPlayer returns a Player. It does not verify tool availability; a missing
// tool surfaces as a PlaybackFailed-style error on the first Play call.
func NewPlayer() *Player {
	return &Player{}
}

// Play writes asset to a temp file and hands it to the first available
// playback tool. The temp file is removed when playback ends.
func (p *Player) Play(ctx context.Context, asset []byte) error {
	if len(asset) == 0 {
		return errors.New("execio: asset must not be empty")
	}

	f, err := os.CreateTemp("", "farevoice-*.audio")
	if err != nil {
		return fmt.Errorf("execio: create temp asset: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(asset); err != nil {
		f.Close()
		return fmt.Errorf("execio: write temp asset: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("execio: close temp asset: %w", err)
	}

	for _, candidate := range playerCandidates {
		if _, err := exec.LookPath(candidate[0]); err != nil {
			continue
		}
		args := append(candidate[1:], path)
		cmd := exec.CommandContext(ctx, candidate[0], args...)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("execio: %s: %w", candidate[0], err)
		}
		return nil
	}
	return errors.New("execio: no playback tool found (tried ffplay, afplay, aplay)")
}

// recorderCandidates lists capture commands in preference order. Each must
// write a 16 kHz mono WAV file to the path appended as the final argument.
var recorderCandidates = [][]string{
	{"sox", "-d", "-r", "16000", "-c", "1", "-b", "16"},
	{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1"},
}

// Recorder captures microphone input through sox or arecord.
type Recorder struct {
	window time.Duration
}

// RecorderOption is a functional option for configuring a Recorder.
type RecorderOption func(*Recorder)

// WithRecordWindow sets the maximum capture duration. Default is 10 s.
func WithRecordWindow(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.window = d
	}
}

// NewRecorder returns a Recorder configured with the supplied options.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{window: defaultRecordWindow}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Record captures one utterance and returns it as WAV bytes.
func (r *Recorder) Record(ctx context.Context) ([]byte, error) {
	f, err := os.CreateTemp("", "farevoice-*.wav")
	if err != nil {
		return nil, fmt.Errorf("execio: create temp capture: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	recordCtx, cancel := context.WithTimeout(ctx, r.window)
	defer cancel()

	for _, candidate := range recorderCandidates {
		if _, err := exec.LookPath(candidate[0]); err != nil {
			continue
		}
		args := append(candidate[1:], path)
		cmd := exec.CommandContext(recordCtx, candidate[0], args...)
		// The capture tool is expected to be killed by the deadline; a
		// deadline kill still leaves a valid WAV on disk.
		if err := cmd.Run(); err != nil && recordCtx.Err() == nil {
			return nil, fmt.Errorf("execio: %s: %w", candidate[0], err)
		}
		wav, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("execio: read capture: %w", err)
		}
		if len(wav) == 0 {
			return nil, errors.New("execio: capture produced no audio")
		}
		return wav, nil
	}
	return nil, errors.New("execio: no capture tool found (tried sox, arecord)")
}
