package timectx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sandevgo/tedbot/internal/core"
)

type Hemisphere string

const (
	Northern Hemisphere = "northern"
	Southern Hemisphere = "southern"
)

func ParseHemisphere(s string) Hemisphere {
	if strings.EqualFold(s, string(Southern)) {
		return Southern
	}
	return Northern
}

// Generate derives the situational time context for now in the given
// timezone. Pure function; the location is validated at config load.
func Generate(now time.Time, loc *time.Location, h Hemisphere) core.TimeContext {
	local := now.In(loc)
	hour := local.Hour()

	tc := core.TimeContext{
		Now:          local,
		PartOfDay:    partOfDay(hour),
		IsWeekend:    local.Weekday() == time.Saturday || local.Weekday() == time.Sunday,
		Season:       season(local.Month(), h),
		EarlyMorning: hour >= 5 && hour < 8,
		LateNight:    hour >= 22 || hour < 2,
	}
	return tc
}

func partOfDay(hour int) core.PartOfDay {
	switch {
	case hour < 6:
		return core.Night
	case hour < 12:
		return core.Morning
	case hour < 18:
		return core.Afternoon
	default:
		return core.Evening
	}
}

func season(m time.Month, h Hemisphere) core.Season {
	var s core.Season
	switch m {
	case time.December, time.January, time.February:
		s = core.Winter
	case time.March, time.April, time.May:
		s = core.Spring
	case time.June, time.July, time.August:
		s = core.Summer
	default:
		s = core.Autumn
	}
	if h == Southern {
		s = invert(s)
	}
	return s
}

func invert(s core.Season) core.Season {
	switch s {
	case core.Winter:
		return core.Summer
	case core.Summer:
		return core.Winter
	case core.Spring:
		return core.Autumn
	default:
		return core.Spring
	}
}

// Describe renders the context as a short human-readable line for the
// system prompt, e.g. "Monday morning, 08:30, winter (weekday)".
func Describe(tc core.TimeContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s, %s, %s",
		tc.Now.Weekday(), tc.PartOfDay, tc.Now.Format("15:04"), tc.Season)
	if tc.IsWeekend {
		sb.WriteString(" (weekend)")
	} else {
		sb.WriteString(" (weekday)")
	}
	if tc.EarlyMorning {
		sb.WriteString(", early morning")
	}
	if tc.LateNight {
		sb.WriteString(", late at night")
	}
	return sb.String()
}

// FormatDuration renders an hour count the way a person would say it:
// "30 minutes", "1.5 hours", "3 days".
func FormatDuration(hours float64) string {
	if hours < 1 {
		minutes := int(math.Round(hours * 60))
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if hours < 24 {
		return pluralize(hours, "hour")
	}
	return pluralize(hours/24, "day")
}

func pluralize(n float64, unit string) string {
	rounded := math.Round(n*10) / 10
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if s == "1" {
		return "1 " + unit
	}
	return s + " " + unit + "s"
}
