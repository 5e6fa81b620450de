package timespec

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"90", 90 * time.Second},
		{"90s", 90 * time.Second},
		{"10m", 10 * time.Minute},
		{"10M", 10 * time.Minute},
		{"1.5h", 90 * time.Minute},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"0.5", 500 * time.Millisecond},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "abc", "10x", "m"} {
		if _, err := ParseDuration(in); err == nil {
			t.Errorf("ParseDuration(%q) succeeded, want error", in)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	cases := []struct {
		in   string
		want HHMM
	}{
		{"7:30", HHMM{7, 30}},
		{"07:30", HHMM{7, 30}},
		{"22h15", HHMM{22, 15}},
		{"22H15", HHMM{22, 15}},
		{"6u45", HHMM{6, 45}},
		{"6U45", HHMM{6, 45}},
		{"0:00", HHMM{0, 0}},
		{"23:59", HHMM{23, 59}},
	}
	for _, tc := range cases {
		got, err := ParseHHMM(tc.in)
		if err != nil {
			t.Errorf("ParseHHMM(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseHHMM(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "730", ":30", "24:00", "7:60", "7:xx", "x:30"} {
		if _, err := ParseHHMM(in); err == nil {
			t.Errorf("ParseHHMM(%q) succeeded, want error", in)
		}
	}
}

func TestParseWeekdays(t *testing.T) {
	all := ParseWeekdays("mtwtfss")
	if all != AllDays {
		t.Fatalf("full mask = %#x, want %#x", all, AllDays)
	}

	// Weekdays only: Monday through Friday set, weekend clear.
	wk := ParseWeekdays("xxxxx--")
	for d := time.Monday; d <= time.Friday; d++ {
		if !WeekdayEnabled(wk, d) {
			t.Errorf("weekday mask misses %v", d)
		}
	}
	if WeekdayEnabled(wk, time.Saturday) || WeekdayEnabled(wk, time.Sunday) {
		t.Error("weekday mask includes the weekend")
	}

	// Underscores disable too; short masks leave the tail disabled.
	if m := ParseWeekdays("m______"); !WeekdayEnabled(m, time.Monday) || m != 1<<time.Monday {
		t.Errorf("monday-only mask = %#x", m)
	}
	if m := ParseWeekdays("m"); m != 1<<time.Monday {
		t.Errorf("short mask = %#x, want monday only", m)
	}

	// The seventh character is Sunday.
	if m := ParseWeekdays("------s"); m != 1<<time.Sunday {
		t.Errorf("sunday mask = %#x", m)
	}
}

func TestShiftMask(t *testing.T) {
	mon := 1 << time.Monday
	if got := ShiftMask(mon); got != 1<<time.Tuesday {
		t.Fatalf("shift(monday) = %#x, want tuesday", got)
	}
	sat := 1 << time.Saturday
	if got := ShiftMask(sat); got != 1<<time.Sunday {
		t.Fatalf("shift(saturday) = %#x, want sunday", got)
	}
	if got := ShiftMask(AllDays); got != AllDays {
		t.Fatalf("shift(all) = %#x, want all", got)
	}
}

func TestNextHHMM(t *testing.T) {
	loc := time.UTC
	// A Wednesday.
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, loc)

	// Later today.
	next, ok := NextHHMM(now, HHMM{18, 30}, AllDays)
	if !ok || !next.Equal(time.Date(2026, 3, 4, 18, 30, 0, 0, loc)) {
		t.Fatalf("next = %v, %v", next, ok)
	}

	// Earlier today rolls to tomorrow.
	next, ok = NextHHMM(now, HHMM{9, 0}, AllDays)
	if !ok || !next.Equal(time.Date(2026, 3, 5, 9, 0, 0, 0, loc)) {
		t.Fatalf("next = %v, %v", next, ok)
	}

	// Exactly now rolls to tomorrow: occurrences are strictly future.
	next, ok = NextHHMM(now, HHMM{10, 0}, AllDays)
	if !ok || !next.Equal(time.Date(2026, 3, 5, 10, 0, 0, 0, loc)) {
		t.Fatalf("next = %v, %v", next, ok)
	}

	// Weekday mask skips ahead: Saturday-only from a Wednesday.
	next, ok = NextHHMM(now, HHMM{8, 0}, 1<<time.Saturday)
	if !ok || !next.Equal(time.Date(2026, 3, 7, 8, 0, 0, 0, loc)) {
		t.Fatalf("next = %v, %v", next, ok)
	}
	if next.Weekday() != time.Saturday {
		t.Fatalf("next weekday = %v", next.Weekday())
	}

	// Empty mask never fires.
	if _, ok := NextHHMM(now, HHMM{8, 0}, 0); ok {
		t.Fatal("empty mask produced an occurrence")
	}
}

func TestNextHHMMAcrossDSTGap(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Brussels")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	// 2026-03-29 02:00 CET jumps to 03:00 CEST. An alarm set for 09:00
	// the morning after the switch must ring at wall-clock 09:00, which
	// is 23 elapsed hours after 09:00 the day before, not 24.
	now := time.Date(2026, 3, 28, 10, 0, 0, 0, loc)
	next, ok := NextHHMM(now, HHMM{9, 0}, AllDays)
	if !ok {
		t.Fatal("no occurrence")
	}
	if next.Hour() != 9 || next.Minute() != 0 || next.Day() != 29 {
		t.Fatalf("next = %v, want 09:00 on the 29th", next)
	}
	if elapsed := next.Sub(time.Date(2026, 3, 28, 9, 0, 0, 0, loc)); elapsed != 23*time.Hour {
		t.Fatalf("elapsed = %v, want 23h across the spring switch", elapsed)
	}
}
