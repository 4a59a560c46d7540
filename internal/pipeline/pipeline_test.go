package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/farevoice/farevoice/internal/tools/fares"
	"github.com/farevoice/farevoice/internal/transcript"
	audiomock "github.com/farevoice/farevoice/pkg/audio/mock"
	imagemock "github.com/farevoice/farevoice/pkg/provider/image/mock"
	"github.com/farevoice/farevoice/pkg/provider/llm"
	llmmock "github.com/farevoice/farevoice/pkg/provider/llm/mock"
	"github.com/farevoice/farevoice/pkg/provider/tts"
	ttsmock "github.com/farevoice/farevoice/pkg/provider/tts/mock"
)

type fixture struct {
	provider *llmmock.Provider
	synth    *ttsmock.Provider
	player   *audiomock.Player
	gen      *imagemock.Generator
	store    *transcript.MemStore
	orch     *Orchestrator
}

func newFixture(t *testing.T, responses ...*llm.CompletionResponse) *fixture {
	t.Helper()
	f := &fixture{
		provider: &llmmock.Provider{CompleteResponses: responses},
		synth:    &ttsmock.Provider{SynthesizeAsset: []byte("mp3")},
		player:   &audiomock.Player{},
		gen:      &imagemock.Generator{Asset: []byte("png")},
		store:    transcript.NewMemStore(),
	}
	f.orch = NewOrchestrator(
		NewResolver(f.provider, newFaresRegistry(t)),
		NewNarrator(f.synth, f.player),
		NewImageStage(f.gen),
		f.store,
	)
	return f
}

func TestRespondToToolScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&llm.CompletionResponse{
			FinishReason: "tool_calls",
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: fares.ToolName, Arguments: `{"destination_city":"Paris"}`},
			},
		},
		&llm.CompletionResponse{Content: "A return ticket to Paris costs $899.", FinishReason: "stop"},
	)

	reply, err := f.orch.RespondTo(context.Background(), "How much to Paris?")
	if err != nil {
		t.Fatalf("RespondTo() error: %v", err)
	}
	if !strings.Contains(reply, "$899") {
		t.Errorf("reply = %q, want the Paris fare", reply)
	}

	turns, err := f.store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("committed %d turns, want 3 (user, tool, assistant)", len(turns))
	}
	if turns[0].Role != transcript.RoleUser || turns[0].Content != "How much to Paris?" {
		t.Errorf("turns[0] = %+v, want the user turn", turns[0])
	}
	if turns[1].Role != transcript.RoleTool || turns[1].ToolCallID != "call_1" {
		t.Errorf("turns[1] = %+v, want the tool turn", turns[1])
	}
	if turns[2].Role != transcript.RoleAssistant || turns[2].Destination != "Paris" {
		t.Errorf("turns[2] = %+v, want the assistant turn with destination", turns[2])
	}

	if got := f.orch.Status(); !strings.HasPrefix(got, "Playing: ") {
		t.Errorf("Status() = %q, want a Playing preview", got)
	}

	// The image side channel fires after commit, keyed off the committed
	// destination.
	waitFor(t, func() bool { return f.orch.LatestImage() != nil })
	if prompt := f.gen.GenerateCalls[0].Prompt; !strings.Contains(prompt, "Paris") {
		t.Errorf("image prompt = %q, want the resolved destination", prompt)
	}
}

func TestRespondToMultiCallTurnImagesFirstDestination(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&llm.CompletionResponse{
			FinishReason: "tool_calls",
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: fares.ToolName, Arguments: `{"destination_city":"Paris"}`},
				{ID: "call_2", Name: fares.ToolName, Arguments: `{"destination_city":"Tokyo"}`},
			},
		},
		&llm.CompletionResponse{Content: "Paris is $899 and Tokyo is $1400.", FinishReason: "stop"},
	)

	if _, err := f.orch.RespondTo(context.Background(), "Compare Paris and Tokyo"); err != nil {
		t.Fatalf("RespondTo() error: %v", err)
	}

	turns, err := f.store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("committed %d turns, want 4 (user, two tool, assistant)", len(turns))
	}
	if turns[3].Destination != "Paris" {
		t.Errorf("assistant Destination = %q, want the first call's city", turns[3].Destination)
	}

	waitFor(t, func() bool { return f.orch.LatestImage() != nil })
	prompt := f.gen.GenerateCalls[0].Prompt
	if !strings.Contains(prompt, "Paris") {
		t.Errorf("image prompt = %q, want the first call's destination", prompt)
	}
	if strings.Contains(prompt, "Tokyo") {
		t.Errorf("image prompt = %q, must not use a later call's destination", prompt)
	}
}

func TestRespondToDirectReplyScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&llm.CompletionResponse{Content: "I price flights, not weather.", FinishReason: "stop"},
	)

	if _, err := f.orch.RespondTo(context.Background(), "what's the weather?"); err != nil {
		t.Fatalf("RespondTo() error: %v", err)
	}

	turns, err := f.store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("committed %d turns, want 2 (user, assistant)", len(turns))
	}
	for _, turn := range turns {
		if turn.Role == transcript.RoleTool {
			t.Errorf("direct reply committed a tool turn: %+v", turn)
		}
	}

	// No destination in the transcript, so the image stage yields nothing.
	time.Sleep(50 * time.Millisecond)
	if f.gen.CallCount() != 0 {
		t.Errorf("Generate called %d times without a destination, want 0", f.gen.CallCount())
	}
	if f.orch.LatestImage() != nil {
		t.Error("LatestImage() set without a destination")
	}
}

// snapshotTTS records how many turns were committed at the moment synthesis
// ran, which is how the commit-after-narration invariant is observed.
type snapshotTTS struct {
	store        transcript.Store
	turnsAtSynth int
}

func (s *snapshotTTS) Synthesize(ctx context.Context, _ string, _ tts.VoiceProfile) ([]byte, error) {
	turns, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.turnsAtSynth = len(turns)
	return []byte("mp3"), nil
}

func TestAssistantTurnCommitsAfterNarrationReady(t *testing.T) {
	t.Parallel()
	store := transcript.NewMemStore()
	synth := &snapshotTTS{store: store}
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{Content: "A ticket to Berlin costs $499.", FinishReason: "stop"},
		},
	}
	orch := NewOrchestrator(
		NewResolver(provider, newFaresRegistry(t)),
		NewNarrator(synth, &audiomock.Player{}),
		NewImageStage(&imagemock.Generator{}),
		store,
	)

	if _, err := orch.RespondTo(context.Background(), "Berlin?"); err != nil {
		t.Fatalf("RespondTo() error: %v", err)
	}
	if synth.turnsAtSynth != 0 {
		t.Errorf("transcript held %d turns during synthesis, want 0 (commit must wait for narration)", synth.turnsAtSynth)
	}

	turns, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(turns) != 2 {
		t.Errorf("committed %d turns after narration, want 2", len(turns))
	}
}

func TestRespondToModelFailureCommitsNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.provider.CompleteErr = errors.New("upstream 503")

	_, err := f.orch.RespondTo(context.Background(), "How much to Paris?")
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("RespondTo() error = %v, want ErrModelUnavailable", err)
	}

	turns, snapErr := f.store.Snapshot(context.Background())
	if snapErr != nil {
		t.Fatalf("Snapshot() error: %v", snapErr)
	}
	if len(turns) != 0 {
		t.Errorf("committed %d turns after model failure, want 0", len(turns))
	}
	if f.synth.CallCount() != 0 {
		t.Errorf("Synthesize called %d times after model failure, want 0", f.synth.CallCount())
	}
	if got := f.orch.Status(); !strings.Contains(got, "failed") {
		t.Errorf("Status() = %q, want a failure status", got)
	}
}

func TestRespondToSynthesisFailureStillCommits(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&llm.CompletionResponse{Content: "A ticket to Berlin costs $499.", FinishReason: "stop"},
	)
	f.synth.SynthesizeErr = errors.New("quota exceeded")

	reply, err := f.orch.RespondTo(context.Background(), "Berlin?")
	if err != nil {
		t.Fatalf("RespondTo() error: %v", err)
	}
	if !strings.Contains(reply, "$499") {
		t.Errorf("reply = %q, want the text reply despite narration failure", reply)
	}

	turns, snapErr := f.store.Snapshot(context.Background())
	if snapErr != nil {
		t.Fatalf("Snapshot() error: %v", snapErr)
	}
	if len(turns) != 2 {
		t.Errorf("committed %d turns, want 2 (degraded to text-only)", len(turns))
	}
	if got := f.orch.Status(); !strings.Contains(got, "Narration failed") {
		t.Errorf("Status() = %q, want a narration failure status", got)
	}

	time.Sleep(50 * time.Millisecond)
	if f.player.CallCount() != 0 {
		t.Errorf("playback launched %d times after synthesis failure, want 0", f.player.CallCount())
	}
}

func TestClearResetsConversation(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		&llm.CompletionResponse{
			FinishReason: "tool_calls",
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: fares.ToolName, Arguments: `{"destination_city":"tokyo"}`},
			},
		},
		&llm.CompletionResponse{Content: "Tokyo is $1400.", FinishReason: "stop"},
	)

	if _, err := f.orch.RespondTo(context.Background(), "Tokyo?"); err != nil {
		t.Fatalf("RespondTo() error: %v", err)
	}
	waitFor(t, func() bool { return f.orch.LatestImage() != nil })

	if err := f.orch.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	turns, err := f.store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("transcript holds %d turns after Clear, want 0", len(turns))
	}
	if f.orch.LatestImage() != nil {
		t.Error("LatestImage() survived Clear")
	}
	if got := f.orch.Status(); got != StatusReady {
		t.Errorf("Status() = %q after Clear, want %q", got, StatusReady)
	}
}
