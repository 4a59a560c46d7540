package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/farevoice/farevoice/internal/observe"
	"github.com/farevoice/farevoice/pkg/audio"
	"github.com/farevoice/farevoice/pkg/provider/tts"
)

// StatusNothingToPlay is reported when a reply has no text to narrate.
const StatusNothingToPlay = "No response to play"

// previewLimit caps the reply preview embedded in the "Playing:" status.
const previewLimit = 60

// NarrationResult is the narration stage's report back to the orchestrator.
// The stage never writes the transcript itself; the orchestrator commits only
// after receiving this result, which is what keeps audio readiness ahead of
// text visibility.
type NarrationResult struct {
	// Status is the user-visible status string.
	Status string

	// Ready is true when a playback task was launched for a synthesized asset.
	Ready bool

	// Err is non-nil when synthesis failed. Narration failure is non-fatal;
	// the orchestrator still commits the text turn.
	Err error
}

// Narrator converts reply text to speech and starts playback once the asset
// is fully synthesized. Playback runs on a detached goroutine that is never
// joined; a new turn's audio may overlap a previous one's.
type Narrator struct {
	tts     tts.Provider
	player  audio.Player
	voice   tts.VoiceProfile
	metrics *observe.Metrics
	log     *slog.Logger
}

// NarratorOption is a functional option for configuring a Narrator.
type NarratorOption func(*Narrator)

// WithVoice sets the voice profile used for synthesis.
func WithVoice(voice tts.VoiceProfile) NarratorOption {
	return func(n *Narrator) {
		n.voice = voice
	}
}

// WithNarratorMetrics attaches metric instruments to the narrator.
func WithNarratorMetrics(m *observe.Metrics) NarratorOption {
	return func(n *Narrator) {
		n.metrics = m
	}
}

// WithNarratorLogger sets the narrator's logger. Default is slog.Default.
func WithNarratorLogger(log *slog.Logger) NarratorOption {
	return func(n *Narrator) {
		n.log = log
	}
}

// NewNarrator returns a Narrator over the given synthesis provider and
// playback facility.
func NewNarrator(provider tts.Provider, player audio.Player, opts ...NarratorOption) *Narrator {
	n := &Narrator{
		tts:    provider,
		player: player,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Narrate synthesizes text and, on success, launches detached playback. It
// blocks only until the audio asset is ready or synthesis has failed, never
// until playback completes. Empty or whitespace-only text skips synthesis.
func (n *Narrator) Narrate(ctx context.Context, text string) NarrationResult {
	if n.tts == nil || strings.TrimSpace(text) == "" {
		return NarrationResult{Status: StatusNothingToPlay}
	}

	start := time.Now()
	asset, err := n.tts.Synthesize(ctx, text, n.voice)
	if n.metrics != nil {
		n.metrics.RecordStageDuration(ctx, n.metrics.SynthesisDuration, time.Since(start).Seconds())
	}
	if err != nil {
		n.metrics.RecordProviderError(ctx, "tts", "synthesize")
		n.log.Warn("speech synthesis failed", "error", err)
		return NarrationResult{
			Status: "Narration failed: " + err.Error(),
			Err:    fmt.Errorf("%w: %v", ErrSynthesisFailed, err),
		}
	}

	// Playback is uncancellable and unjoined; it may outlive the turn that
	// started it.
	go func() {
		if err := n.player.Play(context.Background(), asset); err != nil {
			n.log.Warn("audio playback failed", "error", fmt.Errorf("%w: %v", ErrPlaybackFailed, err))
		}
	}()

	return NarrationResult{
		Status: "Playing: " + preview(text),
		Ready:  true,
	}
}

// preview truncates text for the playback status string. Truncation counts
// runes so a multi-byte character is never split.
func preview(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
