package core

import "errors"

// ErrHistoryUnavailable means the history provider failed. Fatal to the
// current turn: without history the gap filter and resumption logic cannot
// run safely, so the caller surfaces the error instead of fabricating an
// empty-history response.
var ErrHistoryUnavailable = errors.New("conversation history unavailable")

// ErrMemoryUnavailable means the semantic memory provider failed. Recoverable:
// the assembler proceeds with an empty memory set and flags the result.
var ErrMemoryUnavailable = errors.New("semantic memory unavailable")
