// Package timeofday converts wall-clock "HH:MM" strings to minutes since midnight
// and compares half-open minute ranges.
package timeofday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const MinutesPerDay = 24 * 60

var (
	ErrInvalidTime = errors.New("invalid time of day")
	ErrOutOfRange  = errors.New("minutes out of range")
)

// Parse converts "HH:MM" (or "HH:MM:SS", seconds ignored) to minutes since midnight.
func Parse(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := component(parts[0], 23)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := component(parts[1], 59)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(parts) == 3 {
		if _, err := component(parts[2], 59); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}
	return h*60 + m, nil
}

func component(raw string, max int) (int, error) {
	if len(raw) != 2 {
		return 0, ErrInvalidTime
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > max {
		return 0, ErrInvalidTime
	}
	return n, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) int {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Format renders minutes since midnight as zero-padded "HH:MM".
func Format(m int) (string, error) {
	if m < 0 || m >= MinutesPerDay {
		return "", fmt.Errorf("%w: %d", ErrOutOfRange, m)
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60), nil
}

// Overlaps reports whether [startA, endA) and [startB, endB) intersect.
// Ranges that only touch at an endpoint do not overlap.
func Overlaps(startA, endA, startB, endB int) bool {
	return startA < endB && endA > startB
}

// Span is a half-open range of minutes since midnight.
type Span struct {
	Start int
	End   int
}

// WholeDay covers every minute of a day.
var WholeDay = Span{Start: 0, End: MinutesPerDay}

func ParseSpan(start, end string) (Span, error) {
	s, err := Parse(start)
	if err != nil {
		return Span{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Span{}, err
	}
	return Span{Start: s, End: e}, nil
}

func (s Span) Overlaps(o Span) bool { return Overlaps(s.Start, s.End, o.Start, o.End) }

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool { return o.Start >= s.Start && o.End <= s.End }

func (s Span) Len() int { return s.End - s.Start }

func (s Span) Empty() bool { return s.End <= s.Start }
