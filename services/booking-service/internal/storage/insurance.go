package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/agendly/agendly/services/booking-service/internal/model"
)

func (r *Repository) GetInsurancePlan(ctx context.Context, professionalID, planID string) (model.InsurancePlan, error) {
	var p model.InsurancePlan
	err := r.q.QueryRow(ctx, `
		SELECT id::text, professional_id::text, name, limit_per_plan, current_appointments
		FROM insurance_plans
		WHERE id = $1 AND professional_id = $2
	`, planID, professionalID).Scan(&p.ID, &p.ProfessionalID, &p.Name, &p.LimitPerPlan, &p.CurrentAppointments)
	return p, notFound(err)
}

// GetMemberPlanAssociation returns nil when the member has no row for the plan.
func (r *Repository) GetMemberPlanAssociation(ctx context.Context, teamMemberID, planID string) (*model.MemberPlanAssociation, error) {
	var a model.MemberPlanAssociation
	err := r.q.QueryRow(ctx, `
		SELECT team_member_id::text, insurance_plan_id::text, limit_per_member, current_appointments
		FROM team_member_insurance_plans
		WHERE team_member_id = $1 AND insurance_plan_id = $2
	`, teamMemberID, planID).Scan(&a.TeamMemberID, &a.InsurancePlanID, &a.LimitPerMember, &a.CurrentAppointments)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountMemberAssociations tells an unconfigured member (zero rows) apart from one
// that is simply not linked to a given plan.
func (r *Repository) CountMemberAssociations(ctx context.Context, teamMemberID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM team_member_insurance_plans WHERE team_member_id = $1
	`, teamMemberID).Scan(&n)
	return n, err
}

func (r *Repository) ListInsurancePlans(ctx context.Context, professionalID string) ([]model.InsurancePlan, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id::text, professional_id::text, name, limit_per_plan, current_appointments
		FROM insurance_plans
		WHERE professional_id = $1
		ORDER BY name ASC
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InsurancePlan
	for rows.Next() {
		var p model.InsurancePlan
		if err := rows.Scan(&p.ID, &p.ProfessionalID, &p.Name, &p.LimitPerPlan, &p.CurrentAppointments); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) ListMemberAssociations(ctx context.Context, teamMemberID string) ([]model.MemberPlanAssociation, error) {
	rows, err := r.q.Query(ctx, `
		SELECT team_member_id::text, insurance_plan_id::text, limit_per_member, current_appointments
		FROM team_member_insurance_plans
		WHERE team_member_id = $1
	`, teamMemberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MemberPlanAssociation
	for rows.Next() {
		var a model.MemberPlanAssociation
		if err := rows.Scan(&a.TeamMemberID, &a.InsurancePlanID, &a.LimitPerMember, &a.CurrentAppointments); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// AdjustInsuranceUsage moves plan (and member, when set) counters by delta,
// never below zero.
func (r *Repository) AdjustInsuranceUsage(ctx context.Context, planID, teamMemberID string, delta int) error {
	if planID == "" || delta == 0 {
		return nil
	}
	if _, err := r.q.Exec(ctx, `
		UPDATE insurance_plans
		SET current_appointments = GREATEST(current_appointments + $2, 0)
		WHERE id = $1
	`, planID, delta); err != nil {
		return err
	}
	if teamMemberID == "" {
		return nil
	}
	_, err := r.q.Exec(ctx, `
		UPDATE team_member_insurance_plans
		SET current_appointments = GREATEST(current_appointments + $3, 0)
		WHERE team_member_id = $1 AND insurance_plan_id = $2
	`, teamMemberID, planID, delta)
	return err
}
