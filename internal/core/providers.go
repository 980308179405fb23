package core

import "context"

// HistoryProvider reads a user's stored turns in chronological order.
type HistoryProvider interface {
	GetTurns(ctx context.Context, userID string) ([]Turn, error)
}

// MemoryProvider is the external semantic memory service. Search returns
// hits for a query; Store persists one user/assistant exchange.
type MemoryProvider interface {
	Search(ctx context.Context, query, userID string, k int) ([]MemoryHit, error)
	Store(ctx context.Context, userID, userMsg, assistantMsg string) error
}

// AIProvider is the opaque external text generator.
type AIProvider interface {
	Chat(ctx context.Context, history []Message) (Message, error)
	// ChatStream invokes onToken for each delta and returns the full reply.
	ChatStream(ctx context.Context, history []Message, onToken func(string)) (string, error)
}
