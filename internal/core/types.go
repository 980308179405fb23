package core

import "time"

const (
	TedName      = "Ted"
	TedUserAgent = "TedBot/0.1"
	TedVersion   = "0.1.0"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one stored exchange unit (a single user or assistant message).
// Immutable once stored; the core only reads ordered sequences per user.
type Turn struct {
	ID        int64     `json:"id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// MemoryHit is one semantically retrieved long-term memory about a user.
type MemoryHit struct {
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
	RelevanceScore float64   `json:"relevance_score"`
}

type PartOfDay string

const (
	Night     PartOfDay = "night"
	Morning   PartOfDay = "morning"
	Afternoon PartOfDay = "afternoon"
	Evening   PartOfDay = "evening"
)

type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
)

// TimeContext is the derived situational description of "now" in the
// configured user timezone. Recomputed every call, never persisted.
type TimeContext struct {
	Now          time.Time
	PartOfDay    PartOfDay
	IsWeekend    bool
	Season       Season
	EarlyMorning bool
	LateNight    bool
}

// FilteredHistory is the contiguous tail of the stored history selected
// for inclusion in the prompt.
type FilteredHistory struct {
	Turns    []Turn
	Resumed  bool
	GapHours float64
}

// AssembledContext is the merged bundle handed to the response generator.
// Degraded is set when the memory provider failed and the turn proceeded
// without long-term memories.
type AssembledContext struct {
	TimeContext TimeContext
	History     FilteredHistory
	MemoryHits  []MemoryHit
	Resumed     bool
	Degraded    bool
}

// Message is the wire unit handed to the response generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ThreadSummary identifies a named conversation thread in listings.
type ThreadSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
