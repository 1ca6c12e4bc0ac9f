// Package conflict decides whether a candidate booking collides with scheduled
// appointments and whether it fits the professional's business hours.
package conflict

import (
	"context"
	"errors"
	"fmt"

	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/timeofday"
)

var ErrInvalidCandidate = errors.New("invalid booking candidate")

type Store interface {
	ListTemplates(ctx context.Context, f model.TemplateFilter) ([]model.ScheduleTemplate, error)
	ListScheduledAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
}

type Candidate struct {
	ProfessionalID       string
	TeamMemberID         string
	Date                 calendar.Date
	StartTime            string
	EndTime              string
	ExcludeAppointmentID string
}

// Span parses the candidate's times, failing on malformed input or start >= end.
func (c Candidate) Span() (timeofday.Span, error) {
	span, err := timeofday.ParseSpan(c.StartTime, c.EndTime)
	if err != nil {
		return timeofday.Span{}, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}
	if span.Empty() {
		return timeofday.Span{}, fmt.Errorf("%w: start %s must be before end %s", ErrInvalidCandidate, c.StartTime, c.EndTime)
	}
	return span, nil
}

func (c Candidate) Validate() error {
	if c.ProfessionalID == "" {
		return fmt.Errorf("%w: professional id required", ErrInvalidCandidate)
	}
	if c.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalidCandidate)
	}
	_, err := c.Span()
	return err
}

type Details struct {
	AppointmentID string `json:"appointment_id"`
	ClientName    string `json:"client_name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type Result struct {
	HasConflict bool     `json:"has_conflict"`
	Conflict    *Details `json:"conflict,omitempty"`
}

func (r Result) Message() string {
	if !r.HasConflict || r.Conflict == nil {
		return ""
	}
	return fmt.Sprintf("time conflicts with %s's appointment from %s to %s", r.Conflict.ClientName, r.Conflict.StartTime, r.Conflict.EndTime)
}

type Validator struct {
	store Store
}

func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// CheckTimeConflict reports the first scheduled appointment overlapping the candidate.
func (v *Validator) CheckTimeConflict(ctx context.Context, c Candidate) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	appts, err := v.store.ListScheduledAppointments(ctx, model.AppointmentFilter{
		ProfessionalID: c.ProfessionalID,
		Date:           c.Date,
		TeamMemberID:   c.TeamMemberID,
		ExcludeID:      c.ExcludeAppointmentID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("list scheduled appointments: %w", err)
	}
	span, _ := c.Span()
	return FindConflict(appts, span, c.ExcludeAppointmentID), nil
}

// ValidateBusinessHours reports whether the candidate fits an available template for
// its weekday without touching that template's lunch break.
func (v *Validator) ValidateBusinessHours(ctx context.Context, c Candidate) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	weekday := int(c.Date.Weekday())
	templates, err := v.store.ListTemplates(ctx, model.TemplateFilter{
		ProfessionalID: c.ProfessionalID,
		DayOfWeek:      &weekday,
		TeamMemberID:   c.TeamMemberID,
		AvailableOnly:  true,
	})
	if err != nil {
		return false, fmt.Errorf("list templates: %w", err)
	}
	span, _ := c.Span()
	return WithinBusinessHours(templates, span), nil
}

// FindConflict returns the first appointment, in input order, whose range overlaps
// span. Touching endpoints are not a conflict. A stored appointment whose times
// do not parse, such as an end of "24:00", blocks the whole day.
func FindConflict(appts []model.Appointment, span timeofday.Span, excludeID string) Result {
	for _, a := range appts {
		if !a.Scheduled() || (excludeID != "" && a.ID == excludeID) {
			continue
		}
		as, err := a.Span()
		if err != nil {
			as = timeofday.WholeDay
		}
		if span.Overlaps(as) {
			return Result{HasConflict: true, Conflict: &Details{
				AppointmentID: a.ID,
				ClientName:    a.ClientName,
				StartTime:     a.StartTime,
				EndTime:       a.EndTime,
			}}
		}
	}
	return Result{}
}

// WithinBusinessHours walks templates in order. The first available template that
// fully contains span decides: a lunch overlap rejects without trying later templates.
// No templates, or none containing span, also rejects.
func WithinBusinessHours(templates []model.ScheduleTemplate, span timeofday.Span) bool {
	for _, tpl := range templates {
		if !tpl.Available {
			continue
		}
		ts, err := tpl.Span()
		if err != nil || !ts.Contains(span) {
			continue
		}
		lunch, ok, err := tpl.Lunch()
		if err != nil {
			return false
		}
		return !(ok && span.Overlaps(lunch))
	}
	return false
}
