package event

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	yearPattern  = regexp.MustCompile(`\d{4}`)
	timePattern  = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	atTimeSuffix = regexp.MustCompile(`(?i)\s+at\s+\d{1,2}:\d{2}.*$`)
	rangeSplit   = regexp.MustCompile(`\s+[-–]\s+`)
)

// dateLayouts covers the literal shapes listing sites render:
// "Sat, 12 Feb, 2025", "Sat, 12 Feb 2025", "12 Feb 2025", ISO dates.
// Layouts without a year get the year appended before parsing.
var dateLayouts = []string{
	"Mon, 2 Jan, 2006",
	"Mon, 2 Jan 2006",
	"2 Jan, 2006",
	"2 Jan 2006",
	"2006-01-02",
}

// ParseDateTime parses heterogeneous date text from listing pages into a
// timestamp. Date ranges ("A - B") keep only the start. When the text
// carries no year, the current year is assumed, rolling to the next year if
// the resulting date lies in the past relative to now. An optional time text
// ("19:00") sets the clock on the parsed day. Returns false when no known
// shape matches.
func ParseDateTime(dateText, timeText string, now time.Time) (time.Time, bool) {
	text := strings.TrimSpace(dateText)
	if text == "" {
		return time.Time{}, false
	}

	if parts := rangeSplit.Split(text, 2); len(parts) > 1 {
		text = strings.TrimSpace(parts[0])
	}

	// "Sat, 12 Feb at 19:00": lift the time out of the date text
	if m := timePattern.FindStringSubmatch(text); m != nil && timeText == "" {
		if atTimeSuffix.MatchString(text) {
			timeText = m[0]
		}
	}
	text = atTimeSuffix.ReplaceAllString(text, "")
	text = strings.TrimSpace(strings.TrimSuffix(text, ","))

	var parsed time.Time
	ok := false

	if yearPattern.MatchString(text) {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				parsed = t
				ok = true
				break
			}
		}
	} else {
		for _, layout := range []string{"Mon, 2 Jan 2006", "2 Jan 2006"} {
			t, err := time.Parse(layout, fmt.Sprintf("%s %d", text, now.Year()))
			if err != nil {
				continue
			}
			if beforeDay(t, now) {
				if next, err := time.Parse(layout, fmt.Sprintf("%s %d", text, now.Year()+1)); err == nil {
					t = next
				}
			}
			parsed = t
			ok = true
			break
		}
	}

	if !ok {
		return time.Time{}, false
	}

	if m := timePattern.FindStringSubmatch(timeText); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		if hours < 24 && minutes < 60 {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hours, minutes, 0, 0, parsed.Location())
		}
	}

	return parsed, true
}

func beforeDay(t, now time.Time) bool {
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if ty != ny {
		return ty < ny
	}
	if tm != nm {
		return tm < nm
	}
	return td < nd
}

type calendarDay struct {
	year  int
	month time.Month
	day   int
}

// FormatHoldingDate renders a set of timestamps as a compact human-readable
// date range: "12–15 February 2025", "12, 16, 22 February 2025" or
// "12 December 2024, 15 January 2025". Duplicate calendar days are collapsed
// and input order is irrelevant.
func FormatHoldingDate(times []time.Time) string {
	seen := make(map[calendarDay]bool)
	var days []calendarDay
	for _, t := range times {
		if t.IsZero() {
			continue
		}
		d := calendarDay{t.Year(), t.Month(), t.Day()}
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	if len(days) == 0 {
		return ""
	}

	sort.Slice(days, func(i, j int) bool {
		if days[i].year != days[j].year {
			return days[i].year < days[j].year
		}
		if days[i].month != days[j].month {
			return days[i].month < days[j].month
		}
		return days[i].day < days[j].day
	})

	if len(days) == 1 {
		d := days[0]
		return fmt.Sprintf("%d %s %d", d.day, d.month, d.year)
	}

	multiYear := false
	for _, d := range days[1:] {
		if d.year != days[0].year {
			multiYear = true
			break
		}
	}

	var parts []string
	for i := 0; i < len(days); {
		j := i
		for j < len(days) && days[j].year == days[i].year && days[j].month == days[i].month {
			j++
		}
		group := days[i:j]
		suffix := fmt.Sprintf(" %s", group[0].month)
		if multiYear {
			suffix += fmt.Sprintf(" %d", group[0].year)
		}
		parts = append(parts, formatMonthGroup(group)+suffix)
		i = j
	}

	result := strings.Join(parts, ", ")
	if !multiYear {
		result += fmt.Sprintf(" %d", days[0].year)
	}
	return result
}

func formatMonthGroup(group []calendarDay) string {
	switch len(group) {
	case 1:
		return strconv.Itoa(group[0].day)
	case 2:
		// endpoints only, not necessarily consecutive
		return fmt.Sprintf("%d–%d", group[0].day, group[1].day)
	}

	var runs []string
	for i := 0; i < len(group); {
		j := i
		for j+1 < len(group) && group[j+1].day == group[j].day+1 {
			j++
		}
		if j-i+1 >= 4 {
			runs = append(runs, fmt.Sprintf("%d–%d", group[i].day, group[j].day))
		} else {
			for k := i; k <= j; k++ {
				runs = append(runs, strconv.Itoa(group[k].day))
			}
		}
		i = j + 1
	}
	return strings.Join(runs, ", ")
}
