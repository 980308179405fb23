package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/tedbot/internal/core"
	"github.com/sandevgo/tedbot/pkg/log"
)

type TurnsRepo struct {
	db *sql.DB
}

func NewTurnsRepo(db *sql.DB) *TurnsRepo {
	return &TurnsRepo{db: db}
}

func (r *TurnsRepo) AddTurn(ctx context.Context, turn core.Turn) error {
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO turns (user_id, thread_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		turn.UserID, turn.ThreadID, turn.Role, turn.Content, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// GetTurns returns all of a user's turns in chronological order. This is the
// core.HistoryProvider contract; truncation is the gap filter's job.
func (r *TurnsRepo) GetTurns(ctx context.Context, userID string) ([]core.Turn, error) {
	query := `SELECT id, user_id, thread_id, role, content, created_at FROM turns WHERE user_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Debug().Int("count", len(turns)).Str("user_id", userID).Msg("loaded history turns")
	return turns, nil
}

// GetRecent returns the last limit turns after skipping offset from the end,
// in chronological order. Serves the chatlog endpoint's pagination.
func (r *TurnsRepo) GetRecent(ctx context.Context, userID string, limit, offset int) ([]core.Turn, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	// Fetch the window from the tail by ordering DESC, then restore
	// chronological order below.
	query := `SELECT id, user_id, thread_id, role, content, created_at FROM turns
		WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// GetThreadTurns returns every turn tagged with the thread, chronological.
func (r *TurnsRepo) GetThreadTurns(ctx context.Context, threadID string) ([]core.Turn, error) {
	query := `SELECT id, user_id, thread_id, role, content, created_at FROM turns WHERE thread_id = ? ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]core.Turn, error) {
	var turns []core.Turn
	for rows.Next() {
		var t core.Turn
		var content sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.ThreadID, &t.Role, &content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Content = content.String
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return turns, nil
}
