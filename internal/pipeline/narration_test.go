package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	audiomock "github.com/farevoice/farevoice/pkg/audio/mock"
	ttsmock "github.com/farevoice/farevoice/pkg/provider/tts/mock"
)

// waitFor polls cond until it is true or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNarrateSkipsEmptyText(t *testing.T) {
	t.Parallel()
	synth := &ttsmock.Provider{SynthesizeAsset: []byte("mp3")}
	player := &audiomock.Player{}
	n := NewNarrator(synth, player)

	for _, text := range []string{"", "   ", "\n\t"} {
		res := n.Narrate(context.Background(), text)
		if res.Status != StatusNothingToPlay {
			t.Errorf("Narrate(%q).Status = %q, want %q", text, res.Status, StatusNothingToPlay)
		}
		if res.Ready {
			t.Errorf("Narrate(%q).Ready = true, want false", text)
		}
	}
	if synth.CallCount() != 0 {
		t.Errorf("Synthesize called %d times for empty text, want 0", synth.CallCount())
	}
}

func TestNarrateLaunchesDetachedPlayback(t *testing.T) {
	t.Parallel()
	synth := &ttsmock.Provider{SynthesizeAsset: []byte("mp3-bytes")}
	player := &audiomock.Player{Block: make(chan struct{})}
	n := NewNarrator(synth, player)

	res := n.Narrate(context.Background(), "A ticket to Berlin costs $499.")
	if !res.Ready {
		t.Fatalf("Narrate().Ready = false, want true; status %q", res.Status)
	}
	if !strings.HasPrefix(res.Status, "Playing: ") {
		t.Errorf("Narrate().Status = %q, want a Playing preview", res.Status)
	}

	// Narrate returned while playback is still blocked, so playback is
	// genuinely detached.
	waitFor(t, func() bool { return player.CallCount() == 1 })
	close(player.Block)

	if string(player.PlayCalls[0].Asset) != "mp3-bytes" {
		t.Errorf("playback received %q, want the synthesized asset", player.PlayCalls[0].Asset)
	}
}

func TestNarratePreviewTruncation(t *testing.T) {
	t.Parallel()
	synth := &ttsmock.Provider{SynthesizeAsset: []byte("mp3")}
	player := &audiomock.Player{}
	n := NewNarrator(synth, player)

	long := strings.Repeat("travel ", 40)
	res := n.Narrate(context.Background(), long)
	if !strings.HasSuffix(res.Status, "...") {
		t.Errorf("long reply status = %q, want truncated preview", res.Status)
	}
	if len(res.Status) > len("Playing: ")+previewLimit+len("...") {
		t.Errorf("status length = %d, preview not truncated", len(res.Status))
	}

	// Truncation must not split a multi-byte character.
	res = n.Narrate(context.Background(), strings.Repeat("東京への航空券は", 20))
	shown := strings.TrimSuffix(strings.TrimPrefix(res.Status, "Playing: "), "...")
	if !utf8.ValidString(shown) {
		t.Errorf("preview %q is not valid UTF-8", shown)
	}
	if got := utf8.RuneCountInString(shown); got != previewLimit {
		t.Errorf("preview holds %d runes, want %d", got, previewLimit)
	}
}

func TestNarrateSynthesisFailure(t *testing.T) {
	t.Parallel()
	synth := &ttsmock.Provider{SynthesizeErr: errors.New("quota exceeded")}
	player := &audiomock.Player{}
	n := NewNarrator(synth, player)

	res := n.Narrate(context.Background(), "A ticket to Berlin costs $499.")
	if res.Ready {
		t.Error("Narrate().Ready = true after synthesis failure")
	}
	if !errors.Is(res.Err, ErrSynthesisFailed) {
		t.Errorf("Narrate().Err = %v, want ErrSynthesisFailed", res.Err)
	}
	if !strings.Contains(res.Status, "quota exceeded") {
		t.Errorf("Narrate().Status = %q, want the synthesis error", res.Status)
	}

	// No playback task may be launched on failure.
	time.Sleep(50 * time.Millisecond)
	if player.CallCount() != 0 {
		t.Errorf("playback launched %d times after synthesis failure, want 0", player.CallCount())
	}
}
