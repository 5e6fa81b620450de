package timespec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// AllDays is the weekday mask with every day enabled.
const AllDays = 0x7f

// ParseDuration parses a delay literal: a numeric value with an optional
// unit suffix letter, case-insensitive. "m" is minutes, "h" hours, "d"
// days, "w" weeks; no suffix means seconds. "90" is 90 seconds, "10m" is
// 600 seconds, "1.5h" is 5400 seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	numEnd := len(s)
	for i, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != '+' && r != '-' {
			numEnd = i
			break
		}
	}
	value, err := strconv.ParseFloat(s[:numEnd], 64)
	if err != nil {
		return 0, fmt.Errorf("bad duration %q: %w", s, err)
	}

	unit := s[numEnd:]
	switch strings.ToLower(unit) {
	case "", "s":
	case "m":
		value *= 60
	case "h":
		value *= 60 * 60
	case "d":
		value *= 24 * 60 * 60
	case "w":
		value *= 7 * 24 * 60 * 60
	default:
		return 0, fmt.Errorf("bad duration unit %q in %q", unit, s)
	}
	return time.Duration(value * float64(time.Second)), nil
}

// HHMM is a wall-clock time of day.
type HHMM struct {
	Hour, Min int
}

// ParseHHMM parses a time of day written as hours and minutes separated
// by one of ':', 'h', 'H', 'u' or 'U' ("7:30", "07h30", "22u15").
func ParseHHMM(s string) (HHMM, error) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, ":hHuU")
	if idx <= 0 {
		return HHMM{}, fmt.Errorf("bad time %q", s)
	}
	hh, err := strconv.Atoi(s[:idx])
	if err != nil {
		return HHMM{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	mm, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return HHMM{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return HHMM{}, fmt.Errorf("time %q out of range", s)
	}
	return HHMM{Hour: hh, Min: mm}, nil
}

func (t HHMM) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Min)
}

// ParseWeekdays parses a seven-character repeat mask starting on Monday.
// A '-' or '_' disables that day; any other character enables it. The
// result is a bitmask indexed by time.Weekday (bit 0 is Sunday).
// Characters past the seventh are ignored; a short mask leaves the
// remaining days disabled.
func ParseWeekdays(s string) int {
	mask := 0
	for j := 0; j < len(s) && j < 7; j++ {
		if s[j] == '-' || s[j] == '_' {
			continue
		}
		// Position 0 is Monday; time.Weekday counts from Sunday.
		mask |= 1 << ((j + 1) % 7)
	}
	return mask
}

// WeekdayEnabled reports whether the mask enables d.
func WeekdayEnabled(mask int, d time.Weekday) bool {
	return mask&(1<<int(d)) != 0
}

// ShiftMask rotates every enabled day one day later. An interval that
// ends past midnight stops on the calendar day after it starts, so the
// stop edge uses the shifted mask.
func ShiftMask(mask int) int {
	shifted := 0
	for d := 0; d < 7; d++ {
		if mask&(1<<d) != 0 {
			shifted |= 1 << ((d + 1) % 7)
		}
	}
	return shifted
}

// dstSafe resolves a local wall-clock time the way a bedside clock does:
// if normalisation moved the requested hour or minute (the time fell in a
// daylight-saving gap), the wall-clock fields win over the elapsed-time
// interpretation.
func dstSafe(year int, month time.Month, day, hour, min int, loc *time.Location) time.Time {
	t := time.Date(year, month, day, hour, min, 0, 0, loc)
	if t.Hour() != hour || t.Minute() != min {
		// Crossed a daylight-saving switch; re-anchor on the
		// normalised date with the requested wall-clock time.
		t = time.Date(t.Year(), t.Month(), t.Day(), hour, min, 0, 0, loc)
	}
	return t
}

// NextHHMM returns the first instant strictly after now whose local
// wall-clock time equals hhmm and whose weekday is enabled in mask.
// A zero mask never matches; the boolean is false in that case.
func NextHHMM(now time.Time, hhmm HHMM, mask int) (time.Time, bool) {
	if mask&AllDays == 0 {
		return time.Time{}, false
	}

	loc := now.Location()
	next := dstSafe(now.Year(), now.Month(), now.Day(), hhmm.Hour, hhmm.Min, loc)
	if !next.After(now) {
		next = dstSafe(next.Year(), next.Month(), next.Day()+1, hhmm.Hour, hhmm.Min, loc)
	}
	for j := 0; j < 7; j++ {
		if WeekdayEnabled(mask, next.Weekday()) {
			return next, true
		}
		next = dstSafe(next.Year(), next.Month(), next.Day()+1, hhmm.Hour, hhmm.Min, loc)
	}
	return next, true
}
