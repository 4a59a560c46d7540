// Package voice couples the microphone capture facility with a speech-to-text
// provider into a single listen-and-transcribe operation.
//
// Listen never fails: capture or recognition problems degrade to one of the
// marker strings, which the interface layer reports as status without ever
// committing a user turn.
package voice

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/farevoice/farevoice/internal/observe"
	"github.com/farevoice/farevoice/pkg/audio"
	"github.com/farevoice/farevoice/pkg/provider/stt"
)

// Marker strings returned instead of recognized text.
const (
	// MarkerNoSpeech is returned when no utterance was captured.
	MarkerNoSpeech = "No speech detected"

	// MarkerNotUnderstood is returned when audio was captured but could not
	// be transcribed.
	MarkerNotUnderstood = "Could not understand audio"
)

// IsMarker reports whether text is one of the capture marker strings rather
// than recognized speech.
func IsMarker(text string) bool {
	return text == MarkerNoSpeech || text == MarkerNotUnderstood
}

// Listener performs one capture-and-transcribe round per call.
type Listener struct {
	recorder    audio.Recorder
	transcriber stt.Transcriber
	metrics     *observe.Metrics
	log         *slog.Logger
}

// Option is a functional option for configuring a Listener.
type Option func(*Listener)

// WithMetrics attaches metric instruments to the listener.
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Listener) {
		l.metrics = m
	}
}

// WithLogger sets the listener's logger. Default is slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(l *Listener) {
		l.log = log
	}
}

// NewListener returns a Listener over the given capture and transcription
// backends.
func NewListener(recorder audio.Recorder, transcriber stt.Transcriber, opts ...Option) *Listener {
	l := &Listener{
		recorder:    recorder,
		transcriber: transcriber,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Listen captures one utterance and returns the recognized text, or a marker
// string when nothing usable was heard. It never returns an error.
func (l *Listener) Listen(ctx context.Context) string {
	wav, err := l.recorder.Record(ctx)
	if err != nil || len(wav) == 0 {
		if err != nil {
			l.log.Warn("speech capture failed", "error", err)
		}
		return MarkerNoSpeech
	}

	start := time.Now()
	text, err := l.transcriber.Transcribe(ctx, wav)
	if l.metrics != nil {
		l.metrics.RecordStageDuration(ctx, l.metrics.TranscribeDuration, time.Since(start).Seconds())
	}
	if err != nil {
		l.metrics.RecordProviderError(ctx, "stt", "transcribe")
		l.log.Warn("transcription failed", "error", err)
		return MarkerNotUnderstood
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return MarkerNoSpeech
	}
	return text
}
