package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/model"
)

const appointmentColumns = `id::text, professional_id::text, COALESCE(team_member_id::text, ''),
	COALESCE(service_id::text, ''), COALESCE(insurance_plan_id::text, ''), date,
	to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	client_name, client_email, client_phone, status, source, notes, cancel_reason, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var date time.Time
	err := row.Scan(&a.ID, &a.ProfessionalID, &a.TeamMemberID, &a.ServiceID, &a.InsurancePlanID, &date,
		&a.StartTime, &a.EndTime, &a.ClientName, &a.ClientEmail, &a.ClientPhone,
		&a.Status, &a.Source, &a.Notes, &a.CancelReason, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = calendar.DateOf(date)
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) ListScheduledAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
			AND date = $2::date
			AND status = 'scheduled'
			AND ($3::text = '' OR team_member_id::text = $3::text)
			AND ($4::text = '' OR id::text <> $4::text)
		ORDER BY start_time ASC, id ASC
	`, f.ProfessionalID, f.Date.String(), f.TeamMemberID, f.ExcludeID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *Repository) CountScheduledSince(ctx context.Context, professionalID string, since calendar.Date) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE professional_id = $1
			AND status = 'scheduled'
			AND date >= $2::date
	`, professionalID, since.String()).Scan(&n)
	return n, err
}

// InsertAppointment stores a with its preassigned id and fills CreatedAt.
// A concurrent overlapping insert fails with an exclusion violation, see IsConflict.
func (r *Repository) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	return r.q.QueryRow(ctx, `
		INSERT INTO appointments
			(id, professional_id, team_member_id, service_id, insurance_plan_id, date, start_time, end_time,
			 client_name, client_email, client_phone, status, source, notes)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7::time, $8::time, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`, a.ID, a.ProfessionalID, nullable(a.TeamMemberID), nullable(a.ServiceID), nullable(a.InsurancePlanID),
		a.Date.String(), a.StartTime, a.EndTime, a.ClientName, a.ClientEmail, a.ClientPhone,
		a.Status, a.Source, a.Notes).Scan(&a.CreatedAt)
}

func (r *Repository) UpdateAppointmentTimes(ctx context.Context, a model.Appointment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET team_member_id = $3,
			date = $4::date,
			start_time = $5::time,
			end_time = $6::time,
			updated_at = now()
		WHERE id = $1 AND professional_id = $2 AND status = 'scheduled'
	`, a.ID, a.ProfessionalID, nullable(a.TeamMemberID), a.Date.String(), a.StartTime, a.EndTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelAppointment flips status to canceled. Rows are never deleted.
func (r *Repository) CancelAppointment(ctx context.Context, professionalID, id, reason string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET status = 'canceled',
			cancel_reason = $3,
			updated_at = now()
		WHERE id = $1 AND professional_id = $2 AND status = 'scheduled'
	`, id, professionalID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetAppointment(ctx context.Context, professionalID, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND professional_id = $2
	`, id, professionalID))
	return a, notFound(err)
}

func (r *Repository) GetAppointmentForUpdate(ctx context.Context, professionalID, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND professional_id = $2
		FOR UPDATE
	`, id, professionalID))
	return a, notFound(err)
}

// AppointmentQuery lists a professional's appointments in [From, To]. Zero dates and
// an empty Status are unbounded.
type AppointmentQuery struct {
	ProfessionalID string
	From           calendar.Date
	To             calendar.Date
	Status         string
	Limit          int
}

func (r *Repository) ListAppointments(ctx context.Context, q AppointmentQuery) ([]model.Appointment, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	var from, to *string
	if !q.From.IsZero() {
		s := q.From.String()
		from = &s
	}
	if !q.To.IsZero() {
		s := q.To.String()
		to = &s
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
			AND ($2::date IS NULL OR date >= $2::date)
			AND ($3::date IS NULL OR date <= $3::date)
			AND ($4::text = '' OR status = $4::text)
		ORDER BY date ASC, start_time ASC
		LIMIT $5
	`, q.ProfessionalID, from, to, q.Status, q.Limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}
