package memory

import (
	"strings"
	"time"

	"github.com/sandevgo/tedbot/internal/core"
)

// FormatMemories renders hits grouped by local date with time-stamped
// bullets, most relevant first within each day:
//
//	2024-12-16 (Mon)
//	  • 08:30 – Likes jazz
func FormatMemories(hits []core.MemoryHit, loc *time.Location) string {
	if len(hits) == 0 {
		return ""
	}

	type day struct {
		header string
		lines  []string
	}
	var days []day
	index := make(map[string]int)

	for _, hit := range hits {
		local := hit.CreatedAt.In(loc)
		header := local.Format("2006-01-02 (Mon)")
		i, ok := index[header]
		if !ok {
			i = len(days)
			index[header] = i
			days = append(days, day{header: header})
		}
		days[i].lines = append(days[i].lines,
			"  • "+local.Format("15:04")+" – "+strings.TrimSpace(hit.Text))
	}

	var sb strings.Builder
	for _, d := range days {
		sb.WriteString(d.header)
		sb.WriteString("\n")
		sb.WriteString(strings.Join(d.lines, "\n"))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
