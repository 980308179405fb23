package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sandevgo/tedbot/pkg/log"
)

// endMarker terminates every SSE stream so the client can stop listening
// without waiting for the connection to close.
const endMarker = "[END]"

// sseFormat wraps each chunk in JSON so leading spaces survive the SSE
// parser on the client side.
func sseFormat(data string) string {
	encoded, _ := json.Marshal(data)
	return "data:" + string(encoded) + "\n\n"
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	userID := s.userID(req.UserID)
	logger := log.FromCtx(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(chunk string) {
		fmt.Fprint(w, sseFormat(chunk))
		flusher.Flush()
	}

	if req.TestMode {
		s.streamEcho(req.Message, send)
		send(endMarker)
		return
	}

	if req.ThreadID != "" {
		if err := s.threads.Touch(r.Context(), req.ThreadID, userID, req.Message); err != nil {
			logger.Error().Err(err).Str("thread_id", req.ThreadID).Msg("failed to touch thread")
		}
	}

	tokenCount := 0
	_, err := s.agent.StreamReply(r.Context(), userID, req.ThreadID, req.Message, func(token string) {
		tokenCount++
		send(token)
	})
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("stream failed")
		send(fmt.Sprintf("Error: %v", err))
	} else {
		logger.Info().Str("user_id", userID).Int("tokens", tokenCount).Msg("stream complete")
	}

	send(endMarker)
}

// streamEcho simulates a streamed reply in fixed-size chunks, for client
// development without a model behind the API.
func (s *Server) streamEcho(message string, send func(string)) {
	response := "Echo: " + message
	const chunkSize = 8
	for i := 0; i < len(response); i += chunkSize {
		end := i + chunkSize
		if end > len(response) {
			end = len(response)
		}
		send(response[i:end])
		time.Sleep(100 * time.Millisecond)
	}
}
