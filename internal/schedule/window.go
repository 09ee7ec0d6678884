// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ErrInvalidWindow is returned for malformed "HH:MM-HH:MM" strings.
var ErrInvalidWindow = errors.New("invalid time window")

// Window is a half-open daily time-of-day range [Start, End). Offsets are
// measured from local midnight. A window with Start > End wraps midnight.
// The zero Window is empty.
type Window struct {
	Start time.Duration
	End   time.Duration
}

// ParseWindow parses "HH:MM-HH:MM". "24:00" is accepted as an end bound.
func ParseWindow(s string) (Window, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	start, err := parseClock(from)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, s, err)
	}
	end, err := parseClock(to)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, s, err)
	}
	if start == day {
		return Window{}, fmt.Errorf("%w: %q: start cannot be 24:00", ErrInvalidWindow, s)
	}
	return Window{Start: start, End: end}, nil
}

// MustParseWindow is ParseWindow for constants. It panics on error.
func MustParseWindow(s string) Window {
	w, err := ParseWindow(s)
	if err != nil {
		panic(err)
	}
	return w
}

func parseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("out of range %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// IsZero reports whether the window is empty.
func (w Window) IsZero() bool { return w.Start == w.End }

func offset(t time.Time) time.Duration {
	y, mo, d := t.Date()
	return t.Sub(time.Date(y, mo, d, 0, 0, 0, 0, t.Location()))
}

// Contains reports whether t's time of day falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.IsZero() {
		return false
	}
	o := offset(t)
	if w.Start < w.End {
		return o >= w.Start && o < w.End
	}
	return o >= w.Start || o < w.End
}

// EndAfter returns the end of the window occurrence containing t. If t is
// outside the window it returns t unchanged.
func (w Window) EndAfter(t time.Time) time.Time {
	if !w.Contains(t) {
		return t
	}
	y, mo, d := t.Date()
	midnight := time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
	end := midnight.Add(w.End)
	if !end.After(t) {
		end = time.Date(y, mo, d+1, 0, 0, 0, 0, t.Location()).Add(w.End)
	}
	return end
}

// PeriodKey identifies the window occurrence containing t, e.g.
// "2025-03-14@06:30". Wrapping windows are keyed by the day they started.
func (w Window) PeriodKey(t time.Time) string {
	start := t
	if w.Start > w.End && offset(t) < w.End {
		start = t.AddDate(0, 0, -1)
	}
	return start.Format("2006-01-02") + "@" + formatClock(w.Start)
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

func (w Window) String() string {
	if w.IsZero() {
		return ""
	}
	return formatClock(w.Start) + "-" + formatClock(w.End)
}

// MarshalText renders the window as "HH:MM-HH:MM".
func (w Window) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText accepts "HH:MM-HH:MM" or an empty string.
func (w *Window) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == "" {
		*w = Window{}
		return nil
	}
	parsed, err := ParseWindow(string(b))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
