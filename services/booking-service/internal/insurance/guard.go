// Package insurance applies plan-wide and per-member booking caps.
package insurance

import "github.com/agendly/agendly/services/booking-service/internal/model"

// IsLimitReached reports whether no further booking fits plan, or member's
// association with it when member is non-nil. Nil limits are unlimited.
func IsLimitReached(plan model.InsurancePlan, member *model.MemberPlanAssociation) bool {
	if plan.LimitPerPlan != nil && plan.CurrentAppointments >= *plan.LimitPerPlan {
		return true
	}
	if member != nil && member.LimitPerMember != nil && member.CurrentAppointments >= *member.LimitPerMember {
		return true
	}
	return false
}

func Available(plan model.InsurancePlan, member *model.MemberPlanAssociation) bool {
	return !IsLimitReached(plan, member)
}

// FilterPlans returns the plans a client may pick. When teamMemberID has no
// association rows at all the member is treated as accepting every plan, so only
// plan-wide limits apply.
func FilterPlans(plans []model.InsurancePlan, associations []model.MemberPlanAssociation, teamMemberID string) []model.InsurancePlan {
	byPlan := map[string]model.MemberPlanAssociation{}
	for _, a := range associations {
		if a.TeamMemberID == teamMemberID {
			byPlan[a.InsurancePlanID] = a
		}
	}

	out := make([]model.InsurancePlan, 0, len(plans))
	for _, p := range plans {
		if teamMemberID == "" || len(byPlan) == 0 {
			if Available(p, nil) {
				out = append(out, p)
			}
			continue
		}
		assoc, ok := byPlan[p.ID]
		if !ok {
			continue
		}
		if Available(p, &assoc) {
			out = append(out, p)
		}
	}
	return out
}
