// Package pipeline implements the response-orchestration core: tool-call
// resolution against the language model, narration synchronised with the
// transcript commit, and the fire-and-forget destination image trigger.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/farevoice/farevoice/internal/observe"
	"github.com/farevoice/farevoice/internal/tools"
	"github.com/farevoice/farevoice/internal/transcript"
	"github.com/farevoice/farevoice/pkg/provider/llm"
)

// ToolCallResult is the locally resolved outcome of one model-issued tool
// call. It maps 1:1 to a tool turn at commit time.
type ToolCallResult struct {
	// ID matches the model-assigned tool call ID.
	ID string

	// Name is the called tool's name.
	Name string

	// ResultJSON is the JSON-encoded tool output, or an error-marker object
	// when the call could not be executed.
	ResultJSON string
}

// PendingReply is the resolver's output before commit. It exists so narration
// can run before the transcript is mutated.
type PendingReply struct {
	// Text is the final natural-language reply. Possibly empty.
	Text string

	// Destination is the destination resolved by the first pricing tool call
	// of the turn, or "" when no tool call carried one.
	Destination string

	// ToolResults holds one entry per model-issued tool call, in request order.
	ToolResults []ToolCallResult
}

// Resolver runs the two-round tool-call protocol: ask the model with tool
// schemas attached, execute any requested calls locally, then ask again for a
// final reply with tool calls forbidden.
//
// The resolver performs no internal retries; a model failure on either round
// surfaces as ErrModelUnavailable and aborts the turn.
type Resolver struct {
	provider     llm.Provider
	registry     *tools.Registry
	systemPrompt string
	temperature  float64
	maxTokens    int
	metrics      *observe.Metrics
	log          *slog.Logger
}

// ResolverOption is a functional option for configuring a Resolver.
type ResolverOption func(*Resolver)

// WithSystemPrompt sets the system prompt sent on both rounds.
func WithSystemPrompt(prompt string) ResolverOption {
	return func(r *Resolver) {
		r.systemPrompt = prompt
	}
}

// WithTemperature sets the sampling temperature for both rounds.
func WithTemperature(t float64) ResolverOption {
	return func(r *Resolver) {
		r.temperature = t
	}
}

// WithMaxTokens caps completion length for both rounds.
func WithMaxTokens(n int) ResolverOption {
	return func(r *Resolver) {
		r.maxTokens = n
	}
}

// WithResolverMetrics attaches metric instruments to the resolver.
func WithResolverMetrics(m *observe.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithResolverLogger sets the resolver's logger. Default is slog.Default.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = log
	}
}

// NewResolver returns a Resolver over the given model provider and tool
// registry.
func NewResolver(provider llm.Provider, registry *tools.Registry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		provider: provider,
		registry: registry,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve runs the protocol for one user turn against the given transcript
// history and returns the pending, uncommitted reply.
func (r *Resolver) Resolve(ctx context.Context, history []transcript.Turn, userText string) (*PendingReply, error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordStageDuration(ctx, r.metrics.ResolveDuration, time.Since(start).Seconds())
		}
	}()

	messages := append(historyMessages(history), llm.Message{Role: "user", Content: userText})

	initial, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Messages:     messages,
		Tools:        r.registry.Definitions(),
		Temperature:  r.temperature,
		MaxTokens:    r.maxTokens,
		SystemPrompt: r.systemPrompt,
	})
	if err != nil {
		r.metrics.RecordProviderError(ctx, "llm", "completion")
		return nil, fmt.Errorf("%w: initial round: %v", ErrModelUnavailable, err)
	}

	if !initial.WantsToolCalls() {
		return &PendingReply{Text: initial.Content}, nil
	}

	results := make([]ToolCallResult, 0, len(initial.ToolCalls))
	destination := ""
	for _, call := range initial.ToolCalls {
		results = append(results, r.executeCall(ctx, call))
		// First call carrying a destination argument wins; later calls never
		// override it.
		if destination == "" {
			destination = destinationArgument(call.Arguments)
		}
	}

	messages = append(messages, llm.Message{
		Role:      "assistant",
		Content:   initial.Content,
		ToolCalls: initial.ToolCalls,
	})
	for _, res := range results {
		messages = append(messages, llm.Message{
			Role:       "tool",
			Content:    res.ResultJSON,
			ToolCallID: res.ID,
		})
	}

	final, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Messages:     messages,
		Temperature:  r.temperature,
		MaxTokens:    r.maxTokens,
		SystemPrompt: r.systemPrompt,
	})
	if err != nil {
		r.metrics.RecordProviderError(ctx, "llm", "completion")
		return nil, fmt.Errorf("%w: final round: %v", ErrModelUnavailable, err)
	}

	return &PendingReply{
		Text:        final.Content,
		Destination: destination,
		ToolResults: results,
	}, nil
}

// executeCall runs one tool call. Failures never abort the batch: an unknown
// tool, malformed arguments, or a handler error all degrade to an error-marker
// result for that single call.
func (r *Resolver) executeCall(ctx context.Context, call llm.ToolCall) ToolCallResult {
	result := ToolCallResult{ID: call.ID, Name: call.Name}

	tool, err := r.registry.Lookup(call.Name)
	if err != nil {
		r.log.Warn("tool call for unknown tool", "tool", call.Name, "error", err)
		r.metrics.RecordToolCall(ctx, call.Name, "unknown")
		result.ResultJSON = errorMarker(fmt.Sprintf("unknown tool %q", call.Name))
		return result
	}

	if !json.Valid([]byte(call.Arguments)) {
		r.log.Warn("tool call with malformed arguments", "tool", call.Name)
		r.metrics.RecordToolCall(ctx, call.Name, "malformed_args")
		result.ResultJSON = errorMarker("malformed tool arguments")
		return result
	}

	out, err := tool.Handler(ctx, call.Arguments)
	if err != nil {
		r.log.Warn("tool execution failed", "tool", call.Name, "error", err)
		r.metrics.RecordToolCall(ctx, call.Name, "error")
		result.ResultJSON = errorMarker(err.Error())
		return result
	}

	r.metrics.RecordToolCall(ctx, call.Name, "ok")
	result.ResultJSON = out
	return result
}

// errorMarker encodes a tool failure as a JSON result object so the model can
// see the call did not answer.
func errorMarker(msg string) string {
	out, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: msg})
	return string(out)
}

// destinationArgument extracts the destination_city argument from a tool
// call's JSON arguments. Returns "" when absent or unparsable.
func destinationArgument(argsJSON string) string {
	var args struct {
		DestinationCity string `json:"destination_city"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return ""
	}
	return args.DestinationCity
}

// historyMessages converts committed transcript turns into model messages.
// Tool turns are skipped: their model-facing pairing (assistant tool-call
// message plus tool results) only exists within the round trip that produced
// them, and replaying them unpaired is rejected by chat completion APIs.
func historyMessages(history []transcript.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case transcript.RoleUser:
			messages = append(messages, llm.Message{Role: "user", Content: turn.Content})
		case transcript.RoleAssistant:
			messages = append(messages, llm.Message{Role: "assistant", Content: turn.Content})
		}
	}
	return messages
}
