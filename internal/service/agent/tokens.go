package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/tedbot/internal/core"
)

var (
	tkOnce sync.Once
	tk     *tiktoken.Tiktoken
)

// getTokenizer loads the cl100k_base encoding once. Loading can fail when
// the encoding file is neither cached nor fetchable; counting then reports
// zero rather than blocking the turn.
func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		tk = enc
	})
	return tk
}

// countTokens approximates the prompt size of the composed messages.
// Used for debug logging only, not for budgeting.
func countTokens(messages []core.Message) int {
	enc := getTokenizer()
	if enc == nil {
		return 0
	}
	total := 0
	for _, msg := range messages {
		total += len(enc.Encode(msg.Content, nil, nil))
	}
	return total
}
