package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sandevgo/tedbot/internal/config"
	"github.com/sandevgo/tedbot/internal/core"
	"github.com/sandevgo/tedbot/internal/service/agent"
	"github.com/sandevgo/tedbot/internal/storage/sqlite"
	"github.com/sandevgo/tedbot/pkg/log"
)

// Server exposes the chat API consumed by the mobile client: plain chat,
// SSE streaming, chat log and thread management.
type Server struct {
	cfg     *config.AppConfig
	agent   *agent.Companion
	turns   *sqlite.TurnsRepo
	threads *sqlite.ThreadsRepo
	httpSrv *http.Server
}

func NewServer(cfg *config.AppConfig, companion *agent.Companion, turns *sqlite.TurnsRepo, threads *sqlite.ThreadsRepo) *Server {
	s := &Server{
		cfg:     cfg,
		agent:   companion,
		turns:   turns,
		threads: threads,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /chatlog", s.handleChatLog)
	mux.HandleFunc("GET /threads", s.handleListThreads)
	mux.HandleFunc("POST /threads/rename", s.handleRenameThread)

	s.httpSrv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           withCORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.httpSrv.Addr).Msg("starting http api")
	s.httpSrv.BaseContext = func(net.Listener) context.Context { return ctx }
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// withCORS is permissive: the mobile client is served from another origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) userID(raw string) string {
	if raw == "" {
		return s.cfg.DefaultUserID
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type chatRequest struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	ThreadID string `json:"thread_id"`
	TestMode bool   `json:"test_mode"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	userID := s.userID(req.UserID)

	reply, err := s.agent.Reply(r.Context(), userID, req.Message)
	if err != nil {
		status := http.StatusBadGateway
		msg := "response generation failed"
		if errors.Is(err, core.ErrHistoryUnavailable) {
			status = http.StatusServiceUnavailable
			msg = "couldn't load context for this conversation"
		}
		log.FromCtx(r.Context()).Error().Err(err).Str("user_id", userID).Msg("chat failed")
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

type chatLogMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleChatLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := s.userID(q.Get("user_id"))
	limit := intParam(q.Get("limit"), 20)
	offset := intParam(q.Get("offset"), 0)

	turns, err := s.turns.GetRecent(r.Context(), userID, limit, offset)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("chatlog query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load chat log"})
		return
	}

	out := make([]chatLogMessage, 0, len(turns))
	for _, t := range turns {
		out = append(out, chatLogMessage{Role: t.Role, Content: t.Content, Timestamp: t.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r.URL.Query().Get("user_id"))

	threads, err := s.threads.ListThreads(r.Context(), userID)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("thread listing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list threads"})
		return
	}
	if threads == nil {
		threads = []core.ThreadSummary{}
	}
	writeJSON(w, http.StatusOK, threads)
}

type renameRequest struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
}

func (s *Server) handleRenameThread(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ok, err := s.threads.RenameThread(r.Context(), req.ThreadID, s.userID(req.UserID), req.Title)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("thread rename failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to rename thread"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "thread not found or empty title"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
