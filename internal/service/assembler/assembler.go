package assembler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandevgo/tedbot/internal/core"
	"github.com/sandevgo/tedbot/internal/service/history"
	"github.com/sandevgo/tedbot/internal/service/memory"
	"github.com/sandevgo/tedbot/internal/service/timectx"
	"github.com/sandevgo/tedbot/pkg/log"
)

type Config struct {
	Filter        history.Config
	Location      *time.Location
	Hemisphere    timectx.Hemisphere
	MemoriesCount int
}

// Assembler composes time context, gap-filtered history and retrieved
// memories into one context record per incoming user message. Stateless;
// one instance serves all users.
type Assembler struct {
	histProvider core.HistoryProvider
	retriever    *memory.Retriever
	cfg          Config
}

// New validates the filter configuration once, so Assemble never has to.
func New(histProvider core.HistoryProvider, retriever *memory.Retriever, cfg Config) (*Assembler, error) {
	if err := cfg.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter config: %w", err)
	}
	if cfg.MemoriesCount <= 0 {
		return nil, fmt.Errorf("memories count must be positive, got %d", cfg.MemoriesCount)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Assembler{
		histProvider: histProvider,
		retriever:    retriever,
		cfg:          cfg,
	}, nil
}

// Assemble runs the history read and the memory search concurrently and
// merges their outputs. A history failure is fatal to the turn
// (core.ErrHistoryUnavailable); a memory failure degrades the result to an
// empty memory set with Degraded set.
func (a *Assembler) Assemble(ctx context.Context, userID, message string, now time.Time) (core.AssembledContext, error) {
	var (
		turns  []core.Turn
		hits   []core.MemoryHit
		memErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := a.histProvider.GetTurns(gctx, userID)
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrHistoryUnavailable, err)
		}
		turns = t
		return nil
	})
	g.Go(func() error {
		h, err := a.retriever.Retrieve(gctx, message, userID, a.cfg.MemoriesCount)
		if err != nil {
			// Degradable: recorded here, handled after both calls settle.
			memErr = err
			return nil
		}
		hits = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.AssembledContext{}, err
	}

	degraded := false
	if memErr != nil {
		log.FromCtx(ctx).Warn().Err(memErr).Str("user_id", userID).
			Msg("memory retrieval failed, continuing without long-term memories")
		degraded = true
		hits = nil
	}

	filtered := history.Filter(turns, now, a.cfg.Filter)

	return core.AssembledContext{
		TimeContext: timectx.Generate(now, a.cfg.Location, a.cfg.Hemisphere),
		History:     filtered,
		MemoryHits:  hits,
		Resumed:     history.DetectResumption(filtered),
		Degraded:    degraded,
	}, nil
}
