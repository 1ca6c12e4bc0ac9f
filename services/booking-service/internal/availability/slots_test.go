package availability

import (
	"testing"
	"time"

	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/model"
)

var (
	// Monday.
	day = calendar.New(2026, time.March, 2)
	// A "now" on a different day so no past filtering happens.
	yesterday = time.Date(2026, time.March, 1, 18, 0, 0, 0, time.UTC)
)

func tpl(start, end string, duration int) model.ScheduleTemplate {
	return model.ScheduleTemplate{ID: "tpl-" + start, DayOfWeek: 1, StartTime: start, EndTime: end, DurationMinutes: duration, Available: true}
}

func appt(start, end string) model.Appointment {
	return model.Appointment{ID: "appt-" + start, Date: day, StartTime: start, EndTime: end, Status: model.StatusScheduled, ClientName: "Ana"}
}

func assertSlots(t *testing.T, got []model.AvailableSlot, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d slots %v, got %d: %+v", len(want), want, len(got), got)
	}
	for i, w := range want {
		if g := got[i].StartTime + "-" + got[i].EndTime; g != w {
			t.Fatalf("slot %d: expected %s, got %s", i, w, g)
		}
	}
}

func TestGenerateSlots_GridTiling(t *testing.T) {
	slots := GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "12:00", 60)}, nil, day, yesterday)
	assertSlots(t, slots, "09:00-10:00", "10:00-11:00", "11:00-12:00")

	// A trailing remainder shorter than the duration never yields a partial slot.
	slots = GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "12:30", 60)}, nil, day, yesterday)
	assertSlots(t, slots, "09:00-10:00", "10:00-11:00", "11:00-12:00")
}

func TestGenerateSlots_DefaultDuration(t *testing.T) {
	slots := GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "11:00", 0)}, nil, day, yesterday)
	assertSlots(t, slots, "09:00-10:00", "10:00-11:00")
}

func TestGenerateSlots_LunchExclusion(t *testing.T) {
	template := tpl("09:00", "13:00", 60)
	template.LunchStart, template.LunchEnd = "12:00", "13:00"
	slots := GenerateSlots([]model.ScheduleTemplate{template}, nil, day, yesterday)
	assertSlots(t, slots, "09:00-10:00", "10:00-11:00", "11:00-12:00")
}

func TestGenerateSlots_LunchPartialOverlap(t *testing.T) {
	template := tpl("09:00", "12:00", 60)
	template.LunchStart, template.LunchEnd = "10:30", "11:00"
	slots := GenerateSlots([]model.ScheduleTemplate{template}, nil, day, yesterday)
	assertSlots(t, slots, "09:00-10:00", "11:00-12:00")
}

func TestGenerateSlots_BookedExclusion(t *testing.T) {
	template := tpl("09:00", "13:00", 60)
	template.LunchStart, template.LunchEnd = "12:00", "13:00"
	slots := GenerateSlots([]model.ScheduleTemplate{template}, []model.Appointment{appt("10:00", "11:00")}, day, yesterday)
	assertSlots(t, slots, "09:00-10:00", "11:00-12:00")
}

func TestGenerateSlots_UnparsableBookingClosesDay(t *testing.T) {
	slots := GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "12:00", 60)}, []model.Appointment{appt("23:00", "24:00")}, day, yesterday)
	assertSlots(t, slots)

	canceled := appt("23:00", "24:00")
	canceled.Status = model.StatusCanceled
	slots = GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "11:00", 60)}, []model.Appointment{canceled}, day, yesterday)
	assertSlots(t, slots, "09:00-10:00", "10:00-11:00")
}

func TestGenerateSlots_IgnoresCanceledAndOtherDates(t *testing.T) {
	canceled := appt("09:00", "10:00")
	canceled.Status = model.StatusCanceled
	otherDay := appt("10:00", "11:00")
	otherDay.Date = day.AddDays(7)

	slots := GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "11:00", 60)}, []model.Appointment{canceled, otherDay}, day, yesterday)
	assertSlots(t, slots, "09:00-10:00", "10:00-11:00")
}

func TestGenerateSlots_AdjacentBookingKeepsNeighbours(t *testing.T) {
	slots := GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "12:00", 60)}, []model.Appointment{appt("10:00", "11:00")}, day, yesterday)
	assertSlots(t, slots, "09:00-10:00", "11:00-12:00")

	// A booking straddling two grid slots removes both.
	slots = GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "12:00", 60)}, []model.Appointment{appt("09:30", "10:30")}, day, yesterday)
	assertSlots(t, slots, "11:00-12:00")
}

func TestGenerateSlots_SkipsPastForToday(t *testing.T) {
	now := time.Date(2026, time.March, 2, 10, 30, 0, 0, time.UTC)
	slots := GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "12:00", 60)}, nil, day, now)
	assertSlots(t, slots, "11:00-12:00")

	// A slot starting exactly at the current minute is still offered.
	now = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	slots = GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "12:00", 60)}, nil, day, now)
	assertSlots(t, slots, "10:00-11:00", "11:00-12:00")
}

func TestGenerateSlots_TodayUsesNowLocation(t *testing.T) {
	// 01:30 UTC on Mar 3 is still Mar 2 at 22:30 in UTC-3.
	loc := time.FixedZone("BRT", -3*3600)
	now := time.Date(2026, time.March, 3, 1, 30, 0, 0, time.UTC).In(loc)
	slots := GenerateSlots([]model.ScheduleTemplate{tpl("09:00", "12:00", 60)}, nil, day, now)
	if len(slots) != 0 {
		t.Fatalf("expected every slot to be past, got %+v", slots)
	}
}

func TestGenerateSlots_SkipsUnavailableTemplates(t *testing.T) {
	off := tpl("09:00", "12:00", 60)
	off.Available = false
	if slots := GenerateSlots([]model.ScheduleTemplate{off}, nil, day, yesterday); len(slots) != 0 {
		t.Fatalf("expected no slots, got %+v", slots)
	}
}

func TestGenerateSlots_UnionAcrossTemplates(t *testing.T) {
	afternoon := tpl("14:00", "16:00", 30)
	afternoon.TeamMemberID = "member-1"
	templates := []model.ScheduleTemplate{afternoon, tpl("09:00", "10:00", 60)}

	slots := GenerateSlots(templates, nil, day, yesterday)
	assertSlots(t, slots, "14:00-14:30", "14:30-15:00", "15:00-15:30", "15:30-16:00", "09:00-10:00")
	if slots[0].TeamMemberID != "member-1" || slots[4].TeamMemberID != "" {
		t.Fatalf("expected slots to carry template member, got %+v", slots)
	}
	if slots[0].Date != day {
		t.Fatalf("expected slot date %s, got %s", day, slots[0].Date)
	}

	sorted := SortSlots(slots)
	assertSlots(t, sorted, "09:00-10:00", "14:00-14:30", "14:30-15:00", "15:00-15:30", "15:30-16:00")
}

func TestSortSlots_DropsDuplicates(t *testing.T) {
	templates := []model.ScheduleTemplate{tpl("09:00", "11:00", 60), tpl("09:00", "10:00", 60)}
	sorted := SortSlots(GenerateSlots(templates, nil, day, yesterday))
	assertSlots(t, sorted, "09:00-10:00", "10:00-11:00")
}
