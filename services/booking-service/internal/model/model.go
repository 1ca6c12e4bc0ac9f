// Package model holds the booking engine's records. Times of day are wall-clock
// "HH:MM" strings in the professional's local time.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/timeofday"
)

const DefaultSlotDuration = 60

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"

	SourceClient = "client"
	SourceManual = "manual"
)

var ErrInvalidTemplate = errors.New("invalid schedule template")

// ScheduleTemplate is a recurring weekly availability rule. An empty TeamMemberID
// applies regardless of the selected team member.
type ScheduleTemplate struct {
	ID              string `json:"id"`
	ProfessionalID  string `json:"professional_id"`
	TeamMemberID    string `json:"team_member_id,omitempty"`
	DayOfWeek       int    `json:"day_of_week"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"appointment_duration_minutes"`
	LunchStart      string `json:"lunch_break_start,omitempty"`
	LunchEnd        string `json:"lunch_break_end,omitempty"`
	Available       bool   `json:"is_available"`
}

func (t ScheduleTemplate) Duration() int {
	if t.DurationMinutes <= 0 {
		return DefaultSlotDuration
	}
	return t.DurationMinutes
}

func (t ScheduleTemplate) Span() (timeofday.Span, error) {
	return timeofday.ParseSpan(t.StartTime, t.EndTime)
}

// Lunch returns the lunch break, ok=false when none is configured.
func (t ScheduleTemplate) Lunch() (span timeofday.Span, ok bool, err error) {
	if t.LunchStart == "" || t.LunchEnd == "" {
		return timeofday.Span{}, false, nil
	}
	span, err = timeofday.ParseSpan(t.LunchStart, t.LunchEnd)
	if err != nil {
		return timeofday.Span{}, false, err
	}
	return span, true, nil
}

func (t ScheduleTemplate) AppliesTo(teamMemberID string) bool {
	return t.TeamMemberID == "" || t.TeamMemberID == teamMemberID
}

func (t ScheduleTemplate) Validate() error {
	if t.DayOfWeek < 0 || t.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week %d", ErrInvalidTemplate, t.DayOfWeek)
	}
	span, err := t.Span()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if span.Empty() {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidTemplate)
	}
	if t.DurationMinutes < 0 || t.Duration() > span.Len() {
		return fmt.Errorf("%w: appointment duration %d does not fit %s-%s", ErrInvalidTemplate, t.DurationMinutes, t.StartTime, t.EndTime)
	}
	if (t.LunchStart == "") != (t.LunchEnd == "") {
		return fmt.Errorf("%w: lunch break needs both start and end", ErrInvalidTemplate)
	}
	lunch, ok, err := t.Lunch()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if ok && (lunch.Empty() || !span.Contains(lunch)) {
		return fmt.Errorf("%w: lunch break must lie within working hours", ErrInvalidTemplate)
	}
	return nil
}

type Appointment struct {
	ID              string        `json:"id"`
	ProfessionalID  string        `json:"professional_id"`
	TeamMemberID    string        `json:"team_member_id,omitempty"`
	ServiceID       string        `json:"service_id,omitempty"`
	InsurancePlanID string        `json:"insurance_plan_id,omitempty"`
	Date            calendar.Date `json:"date"`
	StartTime       string        `json:"start_time"`
	EndTime         string        `json:"end_time"`
	ClientName      string        `json:"client_name"`
	ClientEmail     string        `json:"client_email,omitempty"`
	ClientPhone     string        `json:"client_phone,omitempty"`
	Status          string        `json:"status"`
	Source          string        `json:"source"`
	Notes           string        `json:"notes,omitempty"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (a Appointment) Span() (timeofday.Span, error) {
	return timeofday.ParseSpan(a.StartTime, a.EndTime)
}

func (a Appointment) Scheduled() bool { return a.Status == StatusScheduled }

// InsurancePlan carries the plan-wide booking cap. A nil limit is unlimited.
type InsurancePlan struct {
	ID                  string `json:"id"`
	ProfessionalID      string `json:"professional_id"`
	Name                string `json:"name"`
	LimitPerPlan        *int   `json:"limit_per_plan"`
	CurrentAppointments int    `json:"current_appointments"`
}

// MemberPlanAssociation links a team member to a plan with an optional per-member cap.
type MemberPlanAssociation struct {
	TeamMemberID        string `json:"team_member_id"`
	InsurancePlanID     string `json:"insurance_plan_id"`
	LimitPerMember      *int   `json:"limit_per_member"`
	CurrentAppointments int    `json:"current_appointments"`
}

// AvailableSlot is derived on every query and never stored.
type AvailableSlot struct {
	Date         calendar.Date `json:"date"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	TeamMemberID string        `json:"team_member_id,omitempty"`
}

type Professional struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// TemplateFilter selects templates. A non-empty TeamMemberID also matches
// member-agnostic templates. Results are ordered by start time.
type TemplateFilter struct {
	ProfessionalID string
	DayOfWeek      *int
	TeamMemberID   string
	AvailableOnly  bool
}

// AppointmentFilter selects scheduled appointments on one date. ExcludeID drops the
// appointment being edited.
type AppointmentFilter struct {
	ProfessionalID string
	Date           calendar.Date
	TeamMemberID   string
	ExcludeID      string
}
