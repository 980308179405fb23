package history

import (
	"fmt"
	"time"

	"github.com/sandevgo/tedbot/internal/core"
)

type Config struct {
	FreshnessHours      float64
	BreakThresholdHours float64
	MaxStaleMessages    int
	// ActiveWindow bounds the prompt size of a conversation that is still fresh.
	ActiveWindow int
}

// Validate rejects threshold combinations that would make the filter
// contradictory. Called once at startup, never per turn.
func (c Config) Validate() error {
	if c.BreakThresholdHours > c.FreshnessHours {
		return fmt.Errorf("break threshold (%vh) must not exceed freshness threshold (%vh)",
			c.BreakThresholdHours, c.FreshnessHours)
	}
	if c.BreakThresholdHours < 0 || c.FreshnessHours < 0 {
		return fmt.Errorf("gap thresholds must be non-negative")
	}
	if c.MaxStaleMessages < 0 {
		return fmt.Errorf("max stale messages must be non-negative")
	}
	if c.ActiveWindow <= 0 {
		return fmt.Errorf("active window must be positive")
	}
	return nil
}

// Filter selects the contiguous tail of turns to carry into the prompt,
// based on how much time passed since the conversation's last turn.
// A gap past BreakThresholdHours marks the turn as a resumption; a gap past
// FreshnessHours shrinks the retained tail to MaxStaleMessages turns.
// The result never reorders turns and is a pure function of its inputs.
func Filter(turns []core.Turn, now time.Time, cfg Config) core.FilteredHistory {
	if len(turns) == 0 {
		return core.FilteredHistory{}
	}

	last := turns[len(turns)-1]
	gapHours := now.Sub(last.CreatedAt).Hours()
	if gapHours < 0 {
		gapHours = 0
	}

	f := core.FilteredHistory{
		GapHours: gapHours,
		Resumed:  gapHours >= cfg.BreakThresholdHours,
	}

	window := cfg.ActiveWindow
	if gapHours >= cfg.FreshnessHours {
		window = cfg.MaxStaleMessages
	}
	f.Turns = tail(turns, window)
	return f
}

// DetectResumption reports whether the current turn follows a break. Kept as
// a named capability so the threshold logic above stays testable on its own.
func DetectResumption(f core.FilteredHistory) bool {
	return f.Resumed
}

func tail(turns []core.Turn, n int) []core.Turn {
	if n >= len(turns) {
		return turns
	}
	return turns[len(turns)-n:]
}
