package model

import (
	"errors"
	"testing"
)

func TestScheduleTemplateValidate(t *testing.T) {
	ok := ScheduleTemplate{DayOfWeek: 1, StartTime: "09:00", EndTime: "13:00", DurationMinutes: 60, LunchStart: "12:00", LunchEnd: "13:00", Available: true}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid template, got %v", err)
	}

	cases := map[string]ScheduleTemplate{
		"weekday":         {DayOfWeek: 7, StartTime: "09:00", EndTime: "10:00"},
		"inverted":        {DayOfWeek: 1, StartTime: "10:00", EndTime: "09:00"},
		"duration":        {DayOfWeek: 1, StartTime: "09:00", EndTime: "09:30", DurationMinutes: 45},
		"default too big": {DayOfWeek: 1, StartTime: "09:00", EndTime: "09:30"},
		"half lunch":      {DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", LunchStart: "11:00"},
		"lunch outside":   {DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", LunchStart: "11:30", LunchEnd: "12:30"},
		"bad time":        {DayOfWeek: 1, StartTime: "9am", EndTime: "12:00"},
	}
	for name, tpl := range cases {
		if err := tpl.Validate(); !errors.Is(err, ErrInvalidTemplate) {
			t.Fatalf("%s: expected ErrInvalidTemplate, got %v", name, err)
		}
	}
}

func TestScheduleTemplateDefaults(t *testing.T) {
	tpl := ScheduleTemplate{StartTime: "09:00", EndTime: "12:00"}
	if tpl.Duration() != DefaultSlotDuration {
		t.Fatalf("expected default duration, got %d", tpl.Duration())
	}
	if !tpl.AppliesTo("member-1") {
		t.Fatal("member-agnostic template must apply to any member")
	}
	tpl.TeamMemberID = "member-2"
	if tpl.AppliesTo("member-1") || !tpl.AppliesTo("member-2") {
		t.Fatal("member-specific template must apply only to its member")
	}
}
