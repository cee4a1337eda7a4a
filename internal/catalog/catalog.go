// Package catalog holds the fixed weekday and hour catalogs and the
// conversions between backend representations (numeric ids, free-text names,
// ISO dates, packed hour integers) and the canonical labels used everywhere
// else. Every converter is total: unparseable input yields an empty or
// sentinel value, never an error.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekdays in week order. The domain has no weekend stages.
var weekdays = []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes"}

// hourWindows are the two scheduling windows offered by the hour catalog,
// in 15-minute steps.
var hourWindows = [][2]string{
	{"06:00", "13:45"},
	{"16:00", "23:45"},
}

// MinutesPerDay and DaysPerWeek size the 5-day scheduling week used by
// AddMinutes.
const (
	minutesPerDay  = 24 * 60
	minutesPerWeek = 5 * minutesPerDay
)

// Fold lowercases a label and strips the accents the Spanish day and stage
// names carry, so comparisons tolerate both accented and legacy unaccented
// payloads.
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	)
	return replacer.Replace(s)
}

// WeekdayFromID maps a catalog id 1..5 to its canonical name, "" otherwise.
func WeekdayFromID(id int) string {
	if id < 1 || id > len(weekdays) {
		return ""
	}
	return weekdays[id-1]
}

// WeekdayID maps a canonical or legacy day name to its catalog id, 0 if the
// name does not resolve.
func WeekdayID(name string) int {
	folded := Fold(name)
	for i, day := range weekdays {
		if Fold(day) == folded {
			return i + 1
		}
	}
	return 0
}

// WeekdayOrder returns the week-order position 1..5 of a day name, -1 for
// anything that is not a weekday.
func WeekdayOrder(name string) int {
	if id := WeekdayID(name); id > 0 {
		return id
	}
	return -1
}

// Weekdays returns the day catalog in week order.
func Weekdays() []string {
	out := make([]string, len(weekdays))
	copy(out, weekdays)
	return out
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeWeekday resolves a raw day representation to a canonical name.
// Accepts the canonical name, an accent/case-insensitive variant, or an ISO
// date string whose day of week is derived. Saturdays, Sundays and anything
// unparseable map to "".
func NormalizeWeekday(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	folded := Fold(raw)
	for _, day := range weekdays {
		if Fold(day) == folded {
			return day
		}
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		switch t.Weekday() {
		case time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday:
			return weekdays[int(t.Weekday())-1]
		default:
			return ""
		}
	}
	return ""
}

// ToHourLabel normalizes a raw hour representation to "HH:MM". Accepts an
// already formatted clock string or a packed integer hours*100+minutes
// (2215 -> "22:15"). Returns "" on anything unparseable.
func ToHourLabel(raw any) string {
	switch v := raw.(type) {
	case string:
		h, m, ok := splitClock(v)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%02d:%02d", h, m)
	case int:
		return packedToLabel(v)
	case int64:
		return packedToLabel(int(v))
	case float64:
		if v != float64(int(v)) {
			return ""
		}
		return packedToLabel(int(v))
	default:
		return ""
	}
}

func packedToLabel(packed int) string {
	h := packed / 100
	m := packed % 100
	if packed < 0 || h > 23 || m > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func splitClock(value string) (int, int, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// FormatTo12Hour renders an "HH:MM" label as "H:MM AM"/"H:MM PM" for display.
// Returns "" on invalid input.
func FormatTo12Hour(hhmm string) string {
	h, m, ok := splitClock(hhmm)
	if !ok {
		return ""
	}
	suffix := "AM"
	display := h
	switch {
	case h == 0:
		display = 12
	case h == 12:
		suffix = "PM"
	case h > 12:
		display = h - 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", display, m, suffix)
}

// AddMinutes advances a (day, hour) pair by the given number of minutes,
// wrapping across day boundaries over the 5-day week (Viernes rolls into
// Lunes). Used for advisory "schedule at least N minutes later" suggestions
// only. Returns ok=false on invalid input.
func AddMinutes(day, hhmm string, minutes int) (string, string, bool) {
	order := WeekdayOrder(day)
	if order < 1 {
		return "", "", false
	}
	h, m, ok := splitClock(hhmm)
	if !ok {
		return "", "", false
	}
	total := (order-1)*minutesPerDay + h*60 + m + minutes
	total %= minutesPerWeek
	if total < 0 {
		total += minutesPerWeek
	}
	newDay := weekdays[total/minutesPerDay]
	rem := total % minutesPerDay
	return newDay, fmt.Sprintf("%02d:%02d", rem/60, rem%60), true
}

// HourOptions returns the full hour catalog: 15-minute increments across the
// two fixed windows.
func HourOptions() []string {
	var out []string
	for _, window := range hourWindows {
		fromH, fromM, _ := splitClock(window[0])
		toH, toM, _ := splitClock(window[1])
		for cur := fromH*60 + fromM; cur <= toH*60+toM; cur += 15 {
			out = append(out, fmt.Sprintf("%02d:%02d", cur/60, cur%60))
		}
	}
	return out
}
