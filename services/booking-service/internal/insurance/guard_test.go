package insurance

import (
	"testing"

	"github.com/agendly/agendly/services/booking-service/internal/model"
)

func intp(v int) *int { return &v }

func TestIsLimitReached_PlanBoundary(t *testing.T) {
	if !IsLimitReached(model.InsurancePlan{LimitPerPlan: intp(3), CurrentAppointments: 3}, nil) {
		t.Fatal("3 of 3 must be unavailable")
	}
	if IsLimitReached(model.InsurancePlan{LimitPerPlan: intp(3), CurrentAppointments: 2}, nil) {
		t.Fatal("2 of 3 must be available")
	}
	if IsLimitReached(model.InsurancePlan{CurrentAppointments: 10_000}, nil) {
		t.Fatal("nil limit must always be available")
	}
}

func TestIsLimitReached_MemberBoundary(t *testing.T) {
	plan := model.InsurancePlan{LimitPerPlan: intp(10), CurrentAppointments: 1}
	if !IsLimitReached(plan, &model.MemberPlanAssociation{LimitPerMember: intp(2), CurrentAppointments: 2}) {
		t.Fatal("member at cap must be unavailable")
	}
	if IsLimitReached(plan, &model.MemberPlanAssociation{LimitPerMember: intp(2), CurrentAppointments: 1}) {
		t.Fatal("member below cap must be available")
	}
	if IsLimitReached(plan, &model.MemberPlanAssociation{CurrentAppointments: 99}) {
		t.Fatal("nil member limit must be available")
	}
	if !IsLimitReached(model.InsurancePlan{LimitPerPlan: intp(1), CurrentAppointments: 1}, &model.MemberPlanAssociation{}) {
		t.Fatal("plan cap applies even when member has room")
	}
	if Available(model.InsurancePlan{LimitPerPlan: intp(0)}, nil) {
		t.Fatal("zero limit must block")
	}
}

func TestFilterPlans(t *testing.T) {
	plans := []model.InsurancePlan{
		{ID: "unimed", LimitPerPlan: intp(5), CurrentAppointments: 1},
		{ID: "amil", LimitPerPlan: intp(2), CurrentAppointments: 2},
		{ID: "sulamerica"},
	}
	assocs := []model.MemberPlanAssociation{
		{TeamMemberID: "member-1", InsurancePlanID: "unimed", LimitPerMember: intp(1), CurrentAppointments: 1},
		{TeamMemberID: "member-1", InsurancePlanID: "sulamerica"},
		{TeamMemberID: "member-2", InsurancePlanID: "unimed"},
	}

	ids := func(ps []model.InsurancePlan) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}

	if got := ids(FilterPlans(plans, assocs, "")); len(got) != 2 || got[0] != "unimed" || got[1] != "sulamerica" {
		t.Fatalf("no member: expected plan-level filter, got %v", got)
	}
	if got := ids(FilterPlans(plans, assocs, "member-1")); len(got) != 1 || got[0] != "sulamerica" {
		t.Fatalf("member-1: expected only sulamerica, got %v", got)
	}
	if got := ids(FilterPlans(plans, assocs, "member-2")); len(got) != 1 || got[0] != "unimed" {
		t.Fatalf("member-2: expected only unimed, got %v", got)
	}
}

// A member with no association rows sees every plan that still has plan-wide room.
func TestFilterPlans_NoAssociationFailsOpen(t *testing.T) {
	plans := []model.InsurancePlan{
		{ID: "unimed"},
		{ID: "amil", LimitPerPlan: intp(2), CurrentAppointments: 2},
		{ID: "bradesco", LimitPerPlan: intp(2), CurrentAppointments: 1},
	}
	got := FilterPlans(plans, nil, "member-9")
	if len(got) != 2 || got[0].ID != "unimed" || got[1].ID != "bradesco" {
		t.Fatalf("expected fail-open to all available plans, got %+v", got)
	}
}
