package availability

import (
	"sort"
	"time"

	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/timeofday"
)

// GenerateSlots slices each available template into a fixed grid of duration-long
// slots and drops the ones that hit the lunch break, have already started (when
// date is today in now's location) or overlap a scheduled appointment on date.
//
// Templates are expected to be pre-filtered to date's weekday and the selected team
// member. Output keeps per-template order; use SortSlots for the merged view.
// Templates whose times do not parse are skipped.
func GenerateSlots(templates []model.ScheduleTemplate, booked []model.Appointment, date calendar.Date, now time.Time) []model.AvailableSlot {
	busy := busySpans(booked, date)

	cutoff := -1
	if calendar.DateOf(now).Equal(date) {
		cutoff = now.Hour()*60 + now.Minute()
	}

	var slots []model.AvailableSlot
	for _, tpl := range templates {
		if !tpl.Available {
			continue
		}
		span, err := tpl.Span()
		if err != nil {
			continue
		}
		lunch, hasLunch, err := tpl.Lunch()
		if err != nil {
			continue
		}
		duration := tpl.Duration()

		for start := span.Start; start+duration <= span.End; start += duration {
			candidate := timeofday.Span{Start: start, End: start + duration}
			if hasLunch && candidate.Overlaps(lunch) {
				continue
			}
			if start < cutoff {
				continue
			}
			if overlapsAny(candidate, busy) {
				continue
			}
			slots = append(slots, model.AvailableSlot{
				Date:         date,
				StartTime:    mustFormat(candidate.Start),
				EndTime:      mustFormat(candidate.End),
				TeamMemberID: tpl.TeamMemberID,
			})
		}
	}
	return slots
}

// SortSlots orders slots by start, then end, then team member, and drops exact
// duplicates produced by overlapping templates.
func SortSlots(slots []model.AvailableSlot) []model.AvailableSlot {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.EndTime != b.EndTime {
			return a.EndTime < b.EndTime
		}
		return a.TeamMemberID < b.TeamMemberID
	})
	out := slots[:0]
	for i, s := range slots {
		if i > 0 && s == slots[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func busySpans(booked []model.Appointment, date calendar.Date) []timeofday.Span {
	busy := make([]timeofday.Span, 0, len(booked))
	for _, a := range booked {
		if !a.Scheduled() || !a.Date.Equal(date) {
			continue
		}
		span, err := a.Span()
		if err != nil {
			// Unreadable bookings keep the day closed rather than double-booked.
			span = timeofday.WholeDay
		}
		busy = append(busy, span)
	}
	return busy
}

func overlapsAny(candidate timeofday.Span, busy []timeofday.Span) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// mustFormat is only called with grid positions inside a parsed template, which
// are always within a single day.
func mustFormat(m int) string {
	s, err := timeofday.Format(m)
	if err != nil {
		panic(err)
	}
	return s
}
