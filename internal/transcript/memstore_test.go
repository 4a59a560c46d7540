package transcript

import (
	"context"
	"testing"
)

func TestMemStoreAppendAndSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	user := NewTurn(RoleUser, "how much is a ticket to berlin?")
	tool := NewToolTurn("call_1", "berlin", "$499")
	reply := NewTurn(RoleAssistant, "A ticket to Berlin costs $499.")

	if err := s.Append(ctx, user); err != nil {
		t.Fatalf("Append(user) error: %v", err)
	}
	if err := s.Append(ctx, tool, reply); err != nil {
		t.Fatalf("Append(tool, reply) error: %v", err)
	}

	turns, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("Snapshot() returned %d turns, want 3", len(turns))
	}
	wantRoles := []Role{RoleUser, RoleTool, RoleAssistant}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Errorf("turns[%d].Role = %q, want %q", i, turns[i].Role, want)
		}
	}
	if turns[1].ToolCallID != "call_1" {
		t.Errorf("tool turn ToolCallID = %q, want %q", turns[1].ToolCallID, "call_1")
	}
}

func TestMemStoreSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	if err := s.Append(ctx, NewTurn(RoleUser, "hello")); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	turns, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	turns[0].Content = "mutated"

	again, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if again[0].Content != "hello" {
		t.Errorf("store content = %q after mutating snapshot, want %q", again[0].Content, "hello")
	}
}

func TestMemStoreClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	if err := s.Append(ctx, NewTurn(RoleUser, "hello"), NewTurn(RoleAssistant, "hi")); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	turns, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Snapshot() returned %d turns after Clear, want 0", len(turns))
	}
}

func TestLatestDestination(t *testing.T) {
	t.Parallel()

	t.Run("newest turn wins", func(t *testing.T) {
		t.Parallel()
		turns := []Turn{
			NewTurn(RoleUser, "paris?"),
			NewToolTurn("call_1", "paris", "$899"),
			NewTurn(RoleAssistant, "Paris is $899."),
			NewTurn(RoleUser, "and tokyo?"),
			NewToolTurn("call_2", "tokyo", "$1400"),
			NewTurn(RoleAssistant, "Tokyo is $1400."),
		}
		if got := LatestDestination(turns); got != "tokyo" {
			t.Errorf("LatestDestination() = %q, want %q", got, "tokyo")
		}
	})

	t.Run("assistant destination wins over later tool calls of its turn", func(t *testing.T) {
		t.Parallel()
		reply := NewTurn(RoleAssistant, "Paris is $899 and Tokyo is $1400.")
		reply.Destination = "paris"
		turns := []Turn{
			NewTurn(RoleUser, "compare paris and tokyo"),
			NewToolTurn("call_1", "paris", "$899"),
			NewToolTurn("call_2", "tokyo", "$1400"),
			reply,
		}
		if got := LatestDestination(turns); got != "paris" {
			t.Errorf("LatestDestination() = %q, want the first call's %q", got, "paris")
		}
	})

	t.Run("no destinations", func(t *testing.T) {
		t.Parallel()
		turns := []Turn{
			NewTurn(RoleUser, "hello"),
			NewTurn(RoleAssistant, "hi there"),
		}
		if got := LatestDestination(turns); got != "" {
			t.Errorf("LatestDestination() = %q, want empty", got)
		}
	})

	t.Run("tool turn with malformed content is skipped", func(t *testing.T) {
		t.Parallel()
		bad := NewTurn(RoleTool, "not json")
		good := NewToolTurn("call_1", "london", "$799")
		turns := []Turn{good, bad}
		if got := LatestDestination(turns); got != "london" {
			t.Errorf("LatestDestination() = %q, want %q", got, "london")
		}
	})
}

func TestToolDestination(t *testing.T) {
	t.Parallel()

	tool := NewToolTurn("call_1", "berlin", "$499")
	if got := tool.ToolDestination(); got != "berlin" {
		t.Errorf("ToolDestination() = %q, want %q", got, "berlin")
	}

	user := NewTurn(RoleUser, `{"destination_city":"berlin"}`)
	if got := user.ToolDestination(); got != "" {
		t.Errorf("ToolDestination() on user turn = %q, want empty", got)
	}
}
