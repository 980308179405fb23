package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandevgo/tedbot/internal/config"
	"github.com/sandevgo/tedbot/internal/core"
	"github.com/sandevgo/tedbot/internal/service/assembler"
	"github.com/sandevgo/tedbot/internal/service/memory"
	"github.com/sandevgo/tedbot/pkg/log"
)

// TurnsRepository persists the turns this companion exchanges.
type TurnsRepository interface {
	AddTurn(ctx context.Context, turn core.Turn) error
}

// Companion runs one conversation turn end to end: assemble context,
// generate a reply, persist both turns, and push the exchange into
// long-term memory in the background. Turns of the same user are
// serialized so the gap filter never reads a history mid-append.
type Companion struct {
	cfg   *config.AppConfig
	ai    core.AIProvider
	asm   *assembler.Assembler
	turns TurnsRepository
	mem   core.MemoryProvider

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	bg    sync.WaitGroup
}

func NewCompanion(
	cfg *config.AppConfig,
	ai core.AIProvider,
	asm *assembler.Assembler,
	turns TurnsRepository,
	mem core.MemoryProvider,
) *Companion {
	return &Companion{
		cfg:   cfg,
		ai:    ai,
		asm:   asm,
		turns: turns,
		mem:   mem,
		locks: map[string]*sync.Mutex{},
	}
}

// Reply generates a full response for one user message.
func (c *Companion) Reply(ctx context.Context, userID, input string) (string, error) {
	return c.run(ctx, userID, "", input, nil)
}

// StreamReply generates a response, invoking onToken for each delta.
// threadID, when non-empty, tags the stored turns with a thread.
func (c *Companion) StreamReply(ctx context.Context, userID, threadID, input string, onToken func(string)) (string, error) {
	return c.run(ctx, userID, threadID, input, onToken)
}

func (c *Companion) run(ctx context.Context, userID, threadID, input string, onToken func(string)) (string, error) {
	unlock := c.lockUser(userID)
	defer unlock()

	logger := log.FromCtx(ctx)
	now := time.Now()

	actx, err := c.asm.Assemble(ctx, userID, input, now)
	if err != nil {
		return "", fmt.Errorf("failed to assemble context: %w", err)
	}
	if actx.Degraded {
		logger.Warn().Str("user_id", userID).Msg("replying without long-term memories")
	}

	memText := memory.FormatMemories(actx.MemoryHits, c.cfg.Location())
	messages := BuildSystemPrompt(c.cfg.AssistantName, c.cfg.UserName, memText, actx)
	for _, t := range actx.History.Turns {
		messages = append(messages, core.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, core.Message{Role: core.RoleUser, Content: input})

	logger.Debug().
		Int("tokens", countTokens(messages)).
		Int("history_turns", len(actx.History.Turns)).
		Int("memory_hits", len(actx.MemoryHits)).
		Bool("resumed", actx.Resumed).
		Msg("composed prompt")

	var reply string
	if onToken != nil {
		reply, err = c.ai.ChatStream(ctx, messages, onToken)
	} else {
		var msg core.Message
		msg, err = c.ai.Chat(ctx, messages)
		reply = msg.Content
	}
	if err != nil {
		return "", fmt.Errorf("ai chat error: %w", err)
	}

	c.persistTurns(ctx, userID, threadID, input, reply, now)
	c.storeInBackground(ctx, userID, input, reply)

	return reply, nil
}

func (c *Companion) persistTurns(ctx context.Context, userID, threadID, input, reply string, now time.Time) {
	logger := log.FromCtx(ctx)
	pairs := []core.Turn{
		{UserID: userID, ThreadID: threadID, Role: core.RoleUser, Content: input, CreatedAt: now},
		{UserID: userID, ThreadID: threadID, Role: core.RoleAssistant, Content: reply, CreatedAt: time.Now()},
	}
	for _, turn := range pairs {
		if err := c.turns.AddTurn(ctx, turn); err != nil {
			logger.Error().Err(err).Str("role", turn.Role).Msg("failed to save turn")
		}
	}
}

// storeInBackground pushes the exchange to the memory provider without
// blocking the reply. Failures only lose personalization, so they are
// logged, not surfaced.
func (c *Companion) storeInBackground(ctx context.Context, userID, input, reply string) {
	logger := log.FromCtx(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := c.mem.Store(storeCtx, userID, input, reply); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("background memory store failed")
		}
	}()
}

// Wait blocks until background memory stores finish. Used on shutdown.
func (c *Companion) Wait() {
	c.bg.Wait()
}

func (c *Companion) lockUser(userID string) func() {
	c.mu.Lock()
	l, ok := c.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[userID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
