package memory

import (
	"context"

	"github.com/sandevgo/tedbot/internal/core"
)

// Noop serves deployments without a memory service: every search is empty
// and stores are dropped. The companion then runs history-only.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) Search(ctx context.Context, query, userID string, k int) ([]core.MemoryHit, error) {
	return nil, nil
}

func (*Noop) Store(ctx context.Context, userID, userMsg, assistantMsg string) error {
	return nil
}
