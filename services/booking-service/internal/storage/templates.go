package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/agendly/agendly/services/booking-service/internal/model"
)

const templateColumns = `id::text, professional_id::text, COALESCE(team_member_id::text, ''), day_of_week,
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), slot_duration,
	COALESCE(to_char(lunch_break_start, 'HH24:MI'), ''), COALESCE(to_char(lunch_break_end, 'HH24:MI'), ''),
	is_available`

func scanTemplate(row pgx.Row) (model.ScheduleTemplate, error) {
	var t model.ScheduleTemplate
	err := row.Scan(&t.ID, &t.ProfessionalID, &t.TeamMemberID, &t.DayOfWeek,
		&t.StartTime, &t.EndTime, &t.DurationMinutes, &t.LunchStart, &t.LunchEnd, &t.Available)
	return t, err
}

// ListTemplates orders by start time so the first containing template is stable.
func (r *Repository) ListTemplates(ctx context.Context, f model.TemplateFilter) ([]model.ScheduleTemplate, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE professional_id = $1
			AND ($2::int IS NULL OR day_of_week = $2::int)
			AND ($3::text = '' OR team_member_id IS NULL OR team_member_id::text = $3::text)
			AND (NOT $4::boolean OR is_available)
		ORDER BY start_time ASC, id ASC
	`, f.ProfessionalID, f.DayOfWeek, f.TeamMemberID, f.AvailableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) ListTemplatesByProfessional(ctx context.Context, professionalID string) ([]model.ScheduleTemplate, error) {
	return r.ListTemplates(ctx, model.TemplateFilter{ProfessionalID: professionalID})
}

func (r *Repository) CreateTemplate(ctx context.Context, t model.ScheduleTemplate) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO schedule_templates
			(id, professional_id, team_member_id, day_of_week, start_time, end_time, slot_duration,
			 lunch_break_start, lunch_break_end, is_available)
		VALUES ($1, $2, $3, $4, $5::time, $6::time, $7, $8::time, $9::time, $10)
	`, t.ID, t.ProfessionalID, nullable(t.TeamMemberID), t.DayOfWeek, t.StartTime, t.EndTime, t.Duration(),
		nullable(t.LunchStart), nullable(t.LunchEnd), t.Available)
	return err
}

func (r *Repository) UpdateTemplate(ctx context.Context, t model.ScheduleTemplate) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE schedule_templates
		SET team_member_id = $3,
			day_of_week = $4,
			start_time = $5::time,
			end_time = $6::time,
			slot_duration = $7,
			lunch_break_start = $8::time,
			lunch_break_end = $9::time,
			is_available = $10,
			updated_at = now()
		WHERE id = $1 AND professional_id = $2
	`, t.ID, t.ProfessionalID, nullable(t.TeamMemberID), t.DayOfWeek, t.StartTime, t.EndTime, t.Duration(),
		nullable(t.LunchStart), nullable(t.LunchEnd), t.Available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteTemplate(ctx context.Context, professionalID, id string) error {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM schedule_templates
		WHERE id = $1 AND professional_id = $2
	`, id, professionalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
