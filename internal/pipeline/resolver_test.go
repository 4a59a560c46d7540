package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/farevoice/farevoice/internal/tools"
	"github.com/farevoice/farevoice/internal/tools/fares"
	"github.com/farevoice/farevoice/internal/transcript"
	"github.com/farevoice/farevoice/pkg/provider/llm"
	llmmock "github.com/farevoice/farevoice/pkg/provider/llm/mock"
)

func newFaresRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	if err := reg.Register(fares.NewTool(fares.NewTable(nil))); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return reg
}

func TestResolveDirectReply(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{Content: "Hello! How can I help?", FinishReason: "stop"},
		},
	}
	r := NewResolver(provider, newFaresRegistry(t), WithSystemPrompt("You are a helpful assistant."))

	reply, err := r.Resolve(context.Background(), nil, "hi there")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if reply.Text != "Hello! How can I help?" {
		t.Errorf("reply.Text = %q, want direct model reply", reply.Text)
	}
	if reply.Destination != "" {
		t.Errorf("reply.Destination = %q, want empty", reply.Destination)
	}
	if len(reply.ToolResults) != 0 {
		t.Errorf("reply.ToolResults has %d entries, want 0", len(reply.ToolResults))
	}

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("Complete called %d times, want 1", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0].Req
	if req.SystemPrompt != "You are a helpful assistant." {
		t.Errorf("request SystemPrompt = %q", req.SystemPrompt)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != fares.ToolName {
		t.Errorf("request Tools = %+v, want the pricing tool schema", req.Tools)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || last.Content != "hi there" {
		t.Errorf("final request message = %+v, want the new user turn", last)
	}
}

func TestResolveToolRound(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{
				FinishReason: "tool_calls",
				ToolCalls: []llm.ToolCall{
					{ID: "call_1", Name: fares.ToolName, Arguments: `{"destination_city":"Paris"}`},
				},
			},
			{Content: "A return ticket to Paris costs $899.", FinishReason: "stop"},
		},
	}
	r := NewResolver(provider, newFaresRegistry(t))

	reply, err := r.Resolve(context.Background(), nil, "How much to Paris?")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if reply.Text != "A return ticket to Paris costs $899." {
		t.Errorf("reply.Text = %q", reply.Text)
	}
	if reply.Destination != "Paris" {
		t.Errorf("reply.Destination = %q, want %q", reply.Destination, "Paris")
	}
	if len(reply.ToolResults) != 1 {
		t.Fatalf("reply.ToolResults has %d entries, want 1", len(reply.ToolResults))
	}
	if !strings.Contains(reply.ToolResults[0].ResultJSON, "$899") {
		t.Errorf("tool result = %q, want the Paris fare", reply.ToolResults[0].ResultJSON)
	}

	if len(provider.CompleteCalls) != 2 {
		t.Fatalf("Complete called %d times, want 2", len(provider.CompleteCalls))
	}

	// Second round carries the assistant tool-call message and the tool
	// result, and must not offer tools again.
	second := provider.CompleteCalls[1].Req
	if len(second.Tools) != 0 {
		t.Errorf("final round offered %d tools, want 0", len(second.Tools))
	}
	var sawAssistantCall, sawToolResult bool
	for _, m := range second.Messages {
		if m.Role == "assistant" && len(m.ToolCalls) == 1 && m.ToolCalls[0].ID == "call_1" {
			sawAssistantCall = true
		}
		if m.Role == "tool" && m.ToolCallID == "call_1" {
			sawToolResult = true
		}
	}
	if !sawAssistantCall {
		t.Error("final round is missing the assistant tool-call message")
	}
	if !sawToolResult {
		t.Error("final round is missing the tool result message")
	}
}

func TestResolveFirstDestinationWins(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{
				FinishReason: "tool_calls",
				ToolCalls: []llm.ToolCall{
					{ID: "call_1", Name: fares.ToolName, Arguments: `{"destination_city":"paris"}`},
					{ID: "call_2", Name: fares.ToolName, Arguments: `{"destination_city":"tokyo"}`},
				},
			},
			{Content: "Paris is $899 and Tokyo is $1400.", FinishReason: "stop"},
		},
	}
	r := NewResolver(provider, newFaresRegistry(t))

	reply, err := r.Resolve(context.Background(), nil, "Compare Paris and Tokyo")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if reply.Destination != "paris" {
		t.Errorf("reply.Destination = %q, want the first call's destination", reply.Destination)
	}
	if len(reply.ToolResults) != 2 {
		t.Errorf("reply.ToolResults has %d entries, want 2", len(reply.ToolResults))
	}
}

func TestResolveMalformedArgumentsDegradePerCall(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{
				FinishReason: "tool_calls",
				ToolCalls: []llm.ToolCall{
					{ID: "call_1", Name: fares.ToolName, Arguments: `{broken`},
					{ID: "call_2", Name: fares.ToolName, Arguments: `{"destination_city":"berlin"}`},
				},
			},
			{Content: "Berlin is $499.", FinishReason: "stop"},
		},
	}
	r := NewResolver(provider, newFaresRegistry(t))

	reply, err := r.Resolve(context.Background(), nil, "prices please")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(reply.ToolResults) != 2 {
		t.Fatalf("reply.ToolResults has %d entries, want 2", len(reply.ToolResults))
	}
	if !strings.Contains(reply.ToolResults[0].ResultJSON, "error") {
		t.Errorf("malformed call result = %q, want an error marker", reply.ToolResults[0].ResultJSON)
	}
	if !strings.Contains(reply.ToolResults[1].ResultJSON, "$499") {
		t.Errorf("valid call result = %q, want the Berlin fare", reply.ToolResults[1].ResultJSON)
	}
	if reply.Destination != "berlin" {
		t.Errorf("reply.Destination = %q, want %q", reply.Destination, "berlin")
	}
}

func TestResolveUnknownToolDegradesPerCall(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{
				FinishReason: "tool_calls",
				ToolCalls: []llm.ToolCall{
					{ID: "call_1", Name: "book_hotel", Arguments: `{}`},
				},
			},
			{Content: "I can only price tickets.", FinishReason: "stop"},
		},
	}
	r := NewResolver(provider, newFaresRegistry(t))

	reply, err := r.Resolve(context.Background(), nil, "book me a hotel")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(reply.ToolResults) != 1 {
		t.Fatalf("reply.ToolResults has %d entries, want 1", len(reply.ToolResults))
	}
	if !strings.Contains(reply.ToolResults[0].ResultJSON, "unknown tool") {
		t.Errorf("unknown tool result = %q, want an error marker", reply.ToolResults[0].ResultJSON)
	}
}

func TestResolveEmptyModelResponse(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{}
	r := NewResolver(provider, newFaresRegistry(t))

	reply, err := r.Resolve(context.Background(), nil, "hello")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if reply.Text != "" {
		t.Errorf("reply.Text = %q, want empty", reply.Text)
	}
	if len(reply.ToolResults) != 0 {
		t.Errorf("reply.ToolResults has %d entries, want 0", len(reply.ToolResults))
	}
}

func TestResolveModelFailure(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{CompleteErr: errors.New("connection refused")}
	r := NewResolver(provider, newFaresRegistry(t))

	_, err := r.Resolve(context.Background(), nil, "hello")
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Resolve() error = %v, want ErrModelUnavailable", err)
	}
}

func TestResolveHistorySkipsToolTurns(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{Content: "It was $899.", FinishReason: "stop"},
		},
	}
	r := NewResolver(provider, newFaresRegistry(t))

	history := []transcript.Turn{
		transcript.NewTurn(transcript.RoleUser, "How much to Paris?"),
		transcript.NewToolTurn("call_1", "paris", "$899"),
		transcript.NewTurn(transcript.RoleAssistant, "Paris is $899."),
	}
	if _, err := r.Resolve(context.Background(), history, "what did you say?"); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	req := provider.CompleteCalls[0].Req
	for _, m := range req.Messages {
		if m.Role == "tool" {
			t.Errorf("history replayed a tool message: %+v", m)
		}
	}
	if len(req.Messages) != 3 {
		t.Errorf("request carried %d messages, want 3 (user, assistant, new user)", len(req.Messages))
	}
}
