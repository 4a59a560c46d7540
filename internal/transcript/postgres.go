package transcript

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlTurns creates the transcript table. seq preserves commit order even when
// two turns share a timestamp, which happens whenever a tool turn and its
// assistant turn are committed in the same batch.
const ddlTurns = `
CREATE TABLE IF NOT EXISTS transcript_turns (
    seq          BIGSERIAL    PRIMARY KEY,
    id           TEXT         NOT NULL UNIQUE,
    role         TEXT         NOT NULL,
    content      TEXT         NOT NULL DEFAULT '',
    tool_call_id TEXT         NOT NULL DEFAULT '',
    destination  TEXT         NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcript_turns_role
    ON transcript_turns (role);
`

// PostgresStore is a Store backed by a PostgreSQL transcript_turns table.
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database at dsn, ensures the transcript
// schema exists, and returns a ready store.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlTurns); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append commits the given turns in order inside a single transaction.
func (s *PostgresStore) Append(ctx context.Context, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	const q = `
		INSERT INTO transcript_turns (id, role, content, tool_call_id, destination, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("transcript: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range turns {
		if _, err := tx.Exec(ctx, q, t.ID, string(t.Role), t.Content, t.ToolCallID, t.Destination, t.CreatedAt); err != nil {
			return fmt.Errorf("transcript: insert turn: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("transcript: commit: %w", err)
	}
	return nil
}

// Snapshot returns the full transcript in commit order.
func (s *PostgresStore) Snapshot(ctx context.Context) ([]Turn, error) {
	const q = `
		SELECT id, role, content, tool_call_id, destination, created_at
		FROM   transcript_turns
		ORDER  BY seq`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("transcript: snapshot: %w", err)
	}

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Turn, error) {
		var (
			t    Turn
			role string
		)
		if err := row.Scan(&t.ID, &role, &t.Content, &t.ToolCallID, &t.Destination, &t.CreatedAt); err != nil {
			return Turn{}, err
		}
		t.Role = Role(role)
		return t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcript: scan rows: %w", err)
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

// Clear removes all turns.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM transcript_turns`); err != nil {
		return fmt.Errorf("transcript: clear: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
