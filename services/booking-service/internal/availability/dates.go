package availability

import (
	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/model"
)

const DefaultHorizonDays = 14

type DatesRequest struct {
	Today         calendar.Date
	HorizonDays   int
	TeamMemberID  string
	QuotaExceeded bool
}

// AvailableDates lists the dates from Today through Today+HorizonDays-1 that have at
// least one available template for their weekday. It does not check whether those
// dates still have free slots. Booking is blocked (empty result) when the quota is
// exceeded or no team member is selected.
func AvailableDates(templates []model.ScheduleTemplate, req DatesRequest) []calendar.Date {
	if req.QuotaExceeded || req.TeamMemberID == "" {
		return []calendar.Date{}
	}
	horizon := req.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}

	var open [7]bool
	for _, tpl := range FilterForMember(templates, req.TeamMemberID) {
		if tpl.Available && tpl.DayOfWeek >= 0 && tpl.DayOfWeek <= 6 {
			open[tpl.DayOfWeek] = true
		}
	}

	dates := make([]calendar.Date, 0, horizon)
	for i := 0; i < horizon; i++ {
		d := req.Today.AddDays(i)
		if open[int(d.Weekday())] {
			dates = append(dates, d)
		}
	}
	return dates
}

// FilterForMember keeps templates owned by teamMemberID plus member-agnostic ones.
func FilterForMember(templates []model.ScheduleTemplate, teamMemberID string) []model.ScheduleTemplate {
	out := make([]model.ScheduleTemplate, 0, len(templates))
	for _, tpl := range templates {
		if tpl.AppliesTo(teamMemberID) {
			out = append(out, tpl)
		}
	}
	return out
}

// ForWeekday keeps templates for the given weekday (0=Sunday).
func ForWeekday(templates []model.ScheduleTemplate, weekday int) []model.ScheduleTemplate {
	out := make([]model.ScheduleTemplate, 0, len(templates))
	for _, tpl := range templates {
		if tpl.DayOfWeek == weekday {
			out = append(out, tpl)
		}
	}
	return out
}
