// Package transcript provides the conversation transcript store: an ordered,
// append-only log of turns that is the single source of truth for what has
// been said in a session.
//
// The store is mutated exclusively by the response pipeline; other stages only
// read snapshots. Two implementations exist: an in-memory store (the default)
// and a PostgreSQL-backed store for persistent transcripts.
package transcript

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a transcript turn.
type Role string

const (
	// RoleUser marks a turn typed or spoken by the human user.
	RoleUser Role = "user"

	// RoleAssistant marks a reply generated by the language model.
	RoleAssistant Role = "assistant"

	// RoleTool marks the recorded result of a tool call.
	RoleTool Role = "tool"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Turn is one entry in the transcript.
//
// Content is always a defined string — an empty reply is stored as "" rather
// than omitted, so downstream stages never branch on absence.
type Turn struct {
	// ID is a unique identifier assigned at construction.
	ID string

	// Role is the author of the turn.
	Role Role

	// Content is the turn's text. For tool turns this is the JSON-encoded tool
	// result.
	Content string

	// ToolCallID links a tool turn to the model-issued call that produced it.
	// Empty for user and assistant turns.
	ToolCallID string

	// Destination is set on an assistant turn to the city argued by the
	// turn's first destination-carrying tool call. Empty otherwise.
	Destination string

	// CreatedAt is the commit timestamp.
	CreatedAt time.Time
}

// NewTurn constructs a Turn with a fresh ID and timestamp.
func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// toolResult is the JSON shape stored as the content of a tool turn.
type toolResult struct {
	DestinationCity string `json:"destination_city"`
	Price           string `json:"price"`
}

// NewToolTurn constructs a tool turn whose content records the resolved
// destination and price, linked to the originating tool call.
func NewToolTurn(toolCallID, destination, price string) Turn {
	content, _ := json.Marshal(toolResult{
		DestinationCity: destination,
		Price:           price,
	})
	t := NewTurn(RoleTool, string(content))
	t.ToolCallID = toolCallID
	return t
}

// ToolDestination extracts the destination recorded in a tool turn's content.
// Returns "" when the turn is not a tool turn or its content does not carry a
// destination field.
func (t Turn) ToolDestination() string {
	if t.Role != RoleTool {
		return ""
	}
	var res toolResult
	if err := json.Unmarshal([]byte(t.Content), &res); err != nil {
		return ""
	}
	return res.DestinationCity
}
