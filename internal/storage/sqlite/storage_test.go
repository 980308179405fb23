package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/tedbot/internal/core"
)

func newTestDB(t *testing.T) (*TurnsRepo, *ThreadsRepo) {
	t.Helper()
	db, err := NewDB(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTurnsRepo(db), NewThreadsRepo(db)
}

func addTurn(t *testing.T, repo *TurnsRepo, userID, role, content string, at time.Time) {
	t.Helper()
	err := repo.AddTurn(context.Background(), core.Turn{
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	})
	require.NoError(t, err)
}

func TestTurns_RoundTripChronological(t *testing.T) {
	turns, _ := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	addTurn(t, turns, "u42", core.RoleUser, "hello", base)
	addTurn(t, turns, "u42", core.RoleAssistant, "hi there", base.Add(time.Minute))
	addTurn(t, turns, "other", core.RoleUser, "not yours", base)

	got, err := turns.GetTurns(ctx, "u42")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, core.RoleUser, got[0].Role)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, core.RoleAssistant, got[1].Role)
	assert.True(t, got[0].CreatedAt.Before(got[1].CreatedAt))
	assert.True(t, base.Equal(got[0].CreatedAt), "stored timestamp must round-trip")
}

func TestTurns_EmptyHistory(t *testing.T) {
	turns, _ := newTestDB(t)

	got, err := turns.GetTurns(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTurns_ZeroCreatedAtDefaultsToNow(t *testing.T) {
	turns, _ := newTestDB(t)
	ctx := context.Background()

	err := turns.AddTurn(ctx, core.Turn{UserID: "u42", Role: core.RoleUser, Content: "hi"})
	require.NoError(t, err)

	got, err := turns.GetTurns(ctx, "u42")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now(), got[0].CreatedAt, 5*time.Second)
}

func TestTurns_GetRecentPagination(t *testing.T) {
	turns, _ := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		addTurn(t, turns, "u42", core.RoleUser, string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
	}

	// Last three, chronological.
	got, err := turns.GetRecent(ctx, "u42", 3, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "h", got[0].Content)
	assert.Equal(t, "j", got[2].Content)

	// Skip the last three from the end.
	got, err = turns.GetRecent(ctx, "u42", 3, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].Content)
	assert.Equal(t, "g", got[2].Content)

	// Non-positive limit falls back to the default window.
	got, err = turns.GetRecent(ctx, "u42", 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestTurns_GetThreadTurns(t *testing.T) {
	turns, _ := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, turns.AddTurn(ctx, core.Turn{
		UserID: "u42", ThreadID: "t1", Role: core.RoleUser, Content: "in thread", CreatedAt: base,
	}))
	require.NoError(t, turns.AddTurn(ctx, core.Turn{
		UserID: "u42", ThreadID: "t2", Role: core.RoleUser, Content: "elsewhere", CreatedAt: base,
	}))

	got, err := turns.GetThreadTurns(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "in thread", got[0].Content)
}

func TestThreads_TouchCreatesWithProvisionalTitle(t *testing.T) {
	_, threads := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, threads.Touch(ctx, "t1", "u42", "  Tell me about jazz  "))

	got, err := threads.ListThreads(ctx, "u42")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "Tell me about jazz", got[0].Title)
}

func TestThreads_TouchKeepsExistingTitle(t *testing.T) {
	_, threads := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, threads.Touch(ctx, "t1", "u42", "first message"))
	require.NoError(t, threads.Touch(ctx, "t1", "u42", "second message"))

	got, err := threads.ListThreads(ctx, "u42")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first message", got[0].Title)
}

func TestThreads_TouchCapsAndDefaultsTitle(t *testing.T) {
	_, threads := newTestDB(t)
	ctx := context.Background()

	long := ""
	for i := 0; i < 10; i++ {
		long += "0123456789"
	}
	require.NoError(t, threads.Touch(ctx, "t1", "u42", long))
	require.NoError(t, threads.Touch(ctx, "t2", "u42", "   "))

	got, err := threads.ListThreads(ctx, "u42")
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[string]string{}
	for _, th := range got {
		byID[th.ID] = th.Title
	}
	assert.Len(t, byID["t1"], titleLimit)
	assert.Equal(t, "Conversation", byID["t2"])
}

func TestThreads_Rename(t *testing.T) {
	_, threads := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, threads.Touch(ctx, "t1", "u42", "provisional"))

	ok, err := threads.RenameThread(ctx, "t1", "u42", "Jazz talk")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := threads.ListThreads(ctx, "u42")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Jazz talk", got[0].Title)

	// Blank title, unknown thread, and foreign owner are all rejected.
	ok, err = threads.RenameThread(ctx, "t1", "u42", "   ")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = threads.RenameThread(ctx, "missing", "u42", "x")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = threads.RenameThread(ctx, "t1", "someone-else", "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestThreads_ListEmpty(t *testing.T) {
	_, threads := newTestDB(t)

	got, err := threads.ListThreads(context.Background(), "u42")
	require.NoError(t, err)
	assert.Empty(t, got)
}
