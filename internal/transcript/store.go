package transcript

import "context"

// Store is the append-only transcript log.
//
// Append is only ever called by the response pipeline, which serialises turn
// resolution, so implementations need not order concurrent writers — but reads
// may come from any goroutine and must be safe against a concurrent Append.
type Store interface {
	// Append commits one or more turns to the end of the transcript in the
	// order given. Either all turns are committed or none.
	Append(ctx context.Context, turns ...Turn) error

	// Snapshot returns a copy of the full transcript in commit order.
	Snapshot(ctx context.Context) ([]Turn, error)

	// Clear removes all turns, resetting the conversation.
	Clear(ctx context.Context) error
}

// LatestDestination scans a transcript snapshot newest-first and returns the
// destination of the most recent turn that carries one. An assistant turn's
// Destination field records the first tool call of its turn, and assistant
// turns commit after their tool turns, so within one turn's batch the first
// call's city is found before any later call's tool result. Returns "" when
// no turn carries a destination.
func LatestDestination(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		switch turns[i].Role {
		case RoleAssistant:
			if turns[i].Destination != "" {
				return turns[i].Destination
			}
		case RoleTool:
			if dest := turns[i].ToolDestination(); dest != "" {
				return dest
			}
		}
	}
	return ""
}
