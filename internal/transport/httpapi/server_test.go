package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/tedbot/internal/config"
	"github.com/sandevgo/tedbot/internal/core"
	"github.com/sandevgo/tedbot/internal/service/agent"
	"github.com/sandevgo/tedbot/internal/service/assembler"
	"github.com/sandevgo/tedbot/internal/service/history"
	"github.com/sandevgo/tedbot/internal/service/memory"
	"github.com/sandevgo/tedbot/internal/service/timectx"
	"github.com/sandevgo/tedbot/internal/storage/sqlite"
)

type fakeAI struct {
	reply string
	err   error
}

func (f *fakeAI) Chat(context.Context, []core.Message) (core.Message, error) {
	if f.err != nil {
		return core.Message{}, f.err
	}
	return core.Message{Role: core.RoleAssistant, Content: f.reply}, nil
}

func (f *fakeAI) ChatStream(_ context.Context, _ []core.Message, onToken func(string)) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for _, token := range strings.SplitAfter(f.reply, " ") {
		onToken(token)
	}
	return f.reply, nil
}

type fakeHistory struct {
	repo *sqlite.TurnsRepo
	err  error
}

func (f *fakeHistory) GetTurns(ctx context.Context, userID string) ([]core.Turn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.repo.GetTurns(ctx, userID)
}

type fakeMemoryProvider struct{}

func (fakeMemoryProvider) Search(context.Context, string, string, int) ([]core.MemoryHit, error) {
	return nil, nil
}

func (fakeMemoryProvider) Store(context.Context, string, string, string) error {
	return nil
}

func testAppConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{
		AssistantName:       "Ted",
		UserName:            "User",
		DefaultUserID:       "u42",
		UserTimezone:        "UTC",
		Hemisphere:          "northern",
		FreshnessHours:      8,
		BreakThresholdHours: 4,
		MaxStaleMessages:    3,
		ContextWindow:       20,
		MemoriesCount:       5,
		MinSimilarity:       0.45,
		RecencyHalfLifeDays: 30,
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// newTestServer wires a full stack on a throwaway database with a canned
// AI provider, and returns the handler plus the backing repos.
func newTestServer(t *testing.T, ai core.AIProvider, histErr error) (http.Handler, *sqlite.TurnsRepo, *sqlite.ThreadsRepo) {
	t.Helper()
	cfg := testAppConfig(t)

	db, err := sqlite.NewDB(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	turns := sqlite.NewTurnsRepo(db)
	threads := sqlite.NewThreadsRepo(db)

	retr := memory.NewRetriever(fakeMemoryProvider{}, memory.Config{
		MinSimilarity:       cfg.MinSimilarity,
		RecencyHalfLifeDays: cfg.RecencyHalfLifeDays,
	})
	asm, err := assembler.New(&fakeHistory{repo: turns, err: histErr}, retr, assembler.Config{
		Filter: history.Config{
			FreshnessHours:      cfg.FreshnessHours,
			BreakThresholdHours: cfg.BreakThresholdHours,
			MaxStaleMessages:    cfg.MaxStaleMessages,
			ActiveWindow:        cfg.ContextWindow,
		},
		Location:      cfg.Location(),
		Hemisphere:    timectx.ParseHemisphere(cfg.Hemisphere),
		MemoriesCount: cfg.MemoriesCount,
	})
	require.NoError(t, err)

	companion := agent.NewCompanion(cfg, ai, asm, turns, fakeMemoryProvider{})
	t.Cleanup(companion.Wait)

	s := NewServer(cfg, companion, turns, threads)
	return s.httpSrv.Handler, turns, threads
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChat_HappyPath(t *testing.T) {
	h, turns, _ := newTestServer(t, &fakeAI{reply: "hey, good to see you"}, nil)

	rec := postJSON(t, h, "/chat", map[string]any{"message": "hi"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Response string `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hey, good to see you", resp.Response)

	// Both sides of the exchange got persisted under the default user.
	stored, err := turns.GetTurns(context.Background(), "u42")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "hi", stored[0].Content)
	assert.Equal(t, "hey, good to see you", stored[1].Content)
}

func TestChat_HistoryFailureReturns503(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeAI{reply: "unused"}, errors.New("db locked"))

	rec := postJSON(t, h, "/chat", map[string]any{"message": "hi"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "couldn't load context")
}

func TestChat_AIFailureReturns502(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeAI{err: errors.New("model offline")}, nil)

	rec := postJSON(t, h, "/chat", map[string]any{"message": "hi"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestChat_InvalidBody(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeAI{reply: "unused"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStream_TestModeEchoes(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeAI{reply: "unused"}, nil)

	rec := postJSON(t, h, "/chat/stream", map[string]any{"message": "hi", "test_mode": true})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	chunks := decodeSSE(t, rec.Body)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "[END]", chunks[len(chunks)-1])
	assert.Equal(t, "Echo: hi", strings.Join(chunks[:len(chunks)-1], ""))
}

func TestChatStream_StreamsTokensAndEnd(t *testing.T) {
	h, _, threads := newTestServer(t, &fakeAI{reply: "good to see you"}, nil)

	rec := postJSON(t, h, "/chat/stream", map[string]any{
		"message":   "hello again",
		"thread_id": "t1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	chunks := decodeSSE(t, rec.Body)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "[END]", chunks[len(chunks)-1])
	assert.Equal(t, "good to see you", strings.Join(chunks[:len(chunks)-1], ""))

	// The stream handler registered the thread with a provisional title.
	list, err := threads.ListThreads(context.Background(), "u42")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hello again", list[0].Title)
}

func TestChatLog_Pagination(t *testing.T) {
	h, turns, _ := newTestServer(t, &fakeAI{reply: "unused"}, nil)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, turns.AddTurn(ctx, core.Turn{
			UserID: "u42", Role: core.RoleUser, Content: string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	req := httptest.NewRequest(http.MethodGet, "/chatlog?limit=2&offset=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "c", msgs[0].Content)
	assert.Equal(t, "d", msgs[1].Content)
}

func TestThreads_ListEmptyIsArray(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeAI{reply: "unused"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/threads", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestThreads_RenameUnknownReturns404(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeAI{reply: "unused"}, nil)

	rec := postJSON(t, h, "/threads/rename", map[string]any{
		"thread_id": "missing", "title": "anything",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	h, _, _ := newTestServer(t, &fakeAI{reply: "unused"}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSSEFormat(t *testing.T) {
	assert.Equal(t, "data:\" hi\"\n\n", sseFormat(" hi"))
	assert.Equal(t, "data:\"[END]\"\n\n", sseFormat("[END]"))
}

func TestIntParam(t *testing.T) {
	assert.Equal(t, 20, intParam("", 20))
	assert.Equal(t, 7, intParam("7", 20))
	assert.Equal(t, 20, intParam("-3", 20))
	assert.Equal(t, 20, intParam("abc", 20))
}

// decodeSSE parses "data:<json>\n\n" events back into their string payloads.
func decodeSSE(t *testing.T, body io.Reader) []string {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var chunks []string
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var s string
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &s))
		chunks = append(chunks, s)
	}
	return chunks
}
