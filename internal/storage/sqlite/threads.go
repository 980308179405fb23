package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sandevgo/tedbot/internal/core"
)

// titleLimit caps provisional and user-supplied thread titles.
const titleLimit = 60

type ThreadsRepo struct {
	db *sql.DB
}

func NewThreadsRepo(db *sql.DB) *ThreadsRepo {
	return &ThreadsRepo{db: db}
}

// Touch records activity on a thread, creating it on first use. The first
// user message becomes the provisional title.
func (r *ThreadsRepo) Touch(ctx context.Context, threadID, userID, firstUserMsg string) error {
	title := strings.TrimSpace(firstUserMsg)
	if title == "" {
		title = "Conversation"
	}
	if len(title) > titleLimit {
		title = title[:titleLimit]
	}

	query := `INSERT INTO threads (id, user_id, title) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.ExecContext(ctx, query, threadID, userID, title); err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}
	return nil
}

// ListThreads returns the user's threads, most recently active first.
func (r *ThreadsRepo) ListThreads(ctx context.Context, userID string) ([]core.ThreadSummary, error) {
	query := `SELECT id, title FROM threads WHERE user_id = ? ORDER BY updated_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer rows.Close()

	var threads []core.ThreadSummary
	for rows.Next() {
		var t core.ThreadSummary
		if err := rows.Scan(&t.ID, &t.Title); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// RenameThread updates a thread title when it belongs to the user.
// Returns false for blank titles or foreign/unknown threads.
func (r *ThreadsRepo) RenameThread(ctx context.Context, threadID, userID, newTitle string) (bool, error) {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return false, nil
	}
	if len(newTitle) > titleLimit {
		newTitle = newTitle[:titleLimit]
	}

	query := `UPDATE threads SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, query, newTitle, threadID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to rename thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
