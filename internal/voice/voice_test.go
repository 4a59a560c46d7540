package voice

import (
	"context"
	"errors"
	"testing"

	audiomock "github.com/farevoice/farevoice/pkg/audio/mock"
	sttmock "github.com/farevoice/farevoice/pkg/provider/stt/mock"
)

func TestListenReturnsRecognizedText(t *testing.T) {
	t.Parallel()
	l := NewListener(
		&audiomock.Recorder{WAV: []byte("wav")},
		&sttmock.Transcriber{Text: "how much is a ticket to berlin"},
	)

	got := l.Listen(context.Background())
	if got != "how much is a ticket to berlin" {
		t.Errorf("Listen() = %q, want the transcription", got)
	}
	if IsMarker(got) {
		t.Errorf("IsMarker(%q) = true for recognized text", got)
	}
}

func TestListenCaptureFailure(t *testing.T) {
	t.Parallel()
	transcriber := &sttmock.Transcriber{Text: "should not be reached"}
	l := NewListener(
		&audiomock.Recorder{Err: errors.New("no capture device")},
		transcriber,
	)

	if got := l.Listen(context.Background()); got != MarkerNoSpeech {
		t.Errorf("Listen() = %q, want %q", got, MarkerNoSpeech)
	}
	if len(transcriber.TranscribeCalls) != 0 {
		t.Errorf("Transcribe called %d times after capture failure, want 0", len(transcriber.TranscribeCalls))
	}
}

func TestListenEmptyCapture(t *testing.T) {
	t.Parallel()
	l := NewListener(
		&audiomock.Recorder{WAV: nil},
		&sttmock.Transcriber{Text: "irrelevant"},
	)

	if got := l.Listen(context.Background()); got != MarkerNoSpeech {
		t.Errorf("Listen() = %q, want %q", got, MarkerNoSpeech)
	}
}

func TestListenTranscriptionFailure(t *testing.T) {
	t.Parallel()
	l := NewListener(
		&audiomock.Recorder{WAV: []byte("wav")},
		&sttmock.Transcriber{Err: errors.New("model overloaded")},
	)

	if got := l.Listen(context.Background()); got != MarkerNotUnderstood {
		t.Errorf("Listen() = %q, want %q", got, MarkerNotUnderstood)
	}
}

func TestListenEmptyTranscription(t *testing.T) {
	t.Parallel()
	l := NewListener(
		&audiomock.Recorder{WAV: []byte("wav")},
		&sttmock.Transcriber{Text: "   "},
	)

	if got := l.Listen(context.Background()); got != MarkerNoSpeech {
		t.Errorf("Listen() = %q, want %q", got, MarkerNoSpeech)
	}
}

func TestIsMarker(t *testing.T) {
	t.Parallel()
	if !IsMarker(MarkerNoSpeech) || !IsMarker(MarkerNotUnderstood) {
		t.Error("IsMarker() = false for marker strings")
	}
	if IsMarker("take me to paris") {
		t.Error("IsMarker() = true for normal text")
	}
}
