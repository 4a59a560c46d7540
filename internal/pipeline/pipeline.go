package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/farevoice/farevoice/internal/observe"
	"github.com/farevoice/farevoice/internal/transcript"
)

// Observable pipeline status strings.
const (
	// StatusReady indicates no turn is in flight.
	StatusReady = "Ready"

	// StatusProcessing indicates a turn is being resolved.
	StatusProcessing = "Processing..."
)

// Orchestrator sequences one user turn through the pipeline: resolve, then
// narrate, then commit, then trigger the image side channel. It is the sole
// writer of the transcript store.
//
// Turns are serialised: a second RespondTo blocks until the in-flight turn
// has run to completion. There is no cancellation of a started turn.
type Orchestrator struct {
	resolver *Resolver
	narrator *Narrator
	imagery  *ImageStage
	store    transcript.Store
	metrics  *observe.Metrics
	log      *slog.Logger

	turnMu sync.Mutex

	mu          sync.Mutex
	status      string
	latestImage []byte
}

// OrchestratorOption is a functional option for configuring an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMetrics attaches metric instruments to the orchestrator.
func WithMetrics(m *observe.Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the orchestrator's logger. Default is slog.Default.
func WithLogger(log *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// NewOrchestrator wires the pipeline stages around the given transcript store.
func NewOrchestrator(resolver *Resolver, narrator *Narrator, imagery *ImageStage, store transcript.Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		resolver: resolver,
		narrator: narrator,
		imagery:  imagery,
		store:    store,
		status:   StatusReady,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RespondTo runs one full turn for the given user text and returns the
// assistant's reply.
//
// Commit ordering: the user turn, any tool turns, and the assistant turn are
// appended in one batch only after narration has reached ready-or-failed, so
// the transcript never shows text whose narration has not been attempted. A
// model failure aborts the turn with no transcript change; a narration
// failure degrades the turn to text-only.
func (o *Orchestrator) RespondTo(ctx context.Context, userText string) (string, error) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	o.setStatus(StatusProcessing)

	history, err := o.store.Snapshot(ctx)
	if err != nil {
		o.setStatus("Processing failed: " + err.Error())
		return "", fmt.Errorf("pipeline: read transcript: %w", err)
	}

	pending, err := o.resolver.Resolve(ctx, history, userText)
	if err != nil {
		o.setStatus("Processing failed: " + err.Error())
		o.metrics.RecordTurn(ctx, "model_unavailable")
		return "", err
	}

	narration := o.narrator.Narrate(ctx, pending.Text)

	turns := make([]transcript.Turn, 0, len(pending.ToolResults)+2)
	turns = append(turns, transcript.NewTurn(transcript.RoleUser, userText))
	for _, res := range pending.ToolResults {
		toolTurn := transcript.NewTurn(transcript.RoleTool, res.ResultJSON)
		toolTurn.ToolCallID = res.ID
		turns = append(turns, toolTurn)
	}
	reply := transcript.NewTurn(transcript.RoleAssistant, pending.Text)
	reply.Destination = pending.Destination
	turns = append(turns, reply)

	if err := o.store.Append(ctx, turns...); err != nil {
		o.setStatus("Processing failed: " + err.Error())
		return "", fmt.Errorf("pipeline: commit turn: %w", err)
	}

	o.setStatus(narration.Status)
	if narration.Err != nil {
		o.metrics.RecordTurn(ctx, "narration_failed")
	} else {
		o.metrics.RecordTurn(ctx, "ok")
	}

	o.triggerImage()

	return pending.Text, nil
}

// triggerImage launches the image side channel for the just-committed turn.
// The task is never joined; its result lands in LatestImage when ready.
func (o *Orchestrator) triggerImage() {
	go func() {
		ctx := context.Background()
		turns, err := o.store.Snapshot(ctx)
		if err != nil {
			o.log.Debug("image trigger could not read transcript", "error", err)
			return
		}
		if asset := o.imagery.Render(ctx, turns); asset != nil {
			o.mu.Lock()
			o.latestImage = asset
			o.mu.Unlock()
		}
	}()
}

// Status returns the current pipeline status string.
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// SetStatus overrides the pipeline status. Used by the interface layer for
// conditions that never reach the resolver, such as failed speech capture.
func (o *Orchestrator) SetStatus(status string) {
	o.setStatus(status)
}

func (o *Orchestrator) setStatus(status string) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
}

// LatestImage returns the most recently generated destination image, or nil.
func (o *Orchestrator) LatestImage() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latestImage
}

// Snapshot returns a read-only copy of the committed transcript.
func (o *Orchestrator) Snapshot(ctx context.Context) ([]transcript.Turn, error) {
	return o.store.Snapshot(ctx)
}

// Clear resets the conversation: transcript, image slot, and status.
func (o *Orchestrator) Clear(ctx context.Context) error {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	if err := o.store.Clear(ctx); err != nil {
		return fmt.Errorf("pipeline: clear transcript: %w", err)
	}
	o.mu.Lock()
	o.latestImage = nil
	o.status = StatusReady
	o.mu.Unlock()
	return nil
}
