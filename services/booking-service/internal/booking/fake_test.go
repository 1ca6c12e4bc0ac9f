package booking

import (
	"context"
	"time"

	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/outbox"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

// memStore is an in-memory Store. InTx restores the snapshot when fn fails.
type memStore struct {
	templates    []model.ScheduleTemplate
	appointments []model.Appointment
	plans        map[string]model.InsurancePlan
	assocs       []model.MemberPlanAssociation
	idem         map[string]storage.IdempotencyRecord
	tier         string
	events       []outbox.Event

	insertErr error
	// onCommit runs after a successful InTx body, standing in for COMMIT.
	onCommit func()
}

func newMemStore() *memStore {
	return &memStore{
		plans: map[string]model.InsurancePlan{},
		idem:  map[string]storage.IdempotencyRecord{},
		tier:  storage.TierFree,
	}
}

func (m *memStore) ListTemplates(_ context.Context, f model.TemplateFilter) ([]model.ScheduleTemplate, error) {
	var out []model.ScheduleTemplate
	for _, t := range m.templates {
		if t.ProfessionalID != f.ProfessionalID {
			continue
		}
		if f.DayOfWeek != nil && t.DayOfWeek != *f.DayOfWeek {
			continue
		}
		if f.TeamMemberID != "" && !t.AppliesTo(f.TeamMemberID) {
			continue
		}
		if f.AvailableOnly && !t.Available {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) ListScheduledAppointments(_ context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.ProfessionalID != f.ProfessionalID || a.Date != f.Date || !a.Scheduled() {
			continue
		}
		if f.TeamMemberID != "" && a.TeamMemberID != f.TeamMemberID {
			continue
		}
		if f.ExcludeID != "" && a.ID == f.ExcludeID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) CountScheduledSince(_ context.Context, professionalID string, since calendar.Date) (int, error) {
	n := 0
	for _, a := range m.appointments {
		if a.ProfessionalID == professionalID && a.Scheduled() && !a.Date.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetInsurancePlan(_ context.Context, professionalID, planID string) (model.InsurancePlan, error) {
	p, ok := m.plans[planID]
	if !ok || p.ProfessionalID != professionalID {
		return model.InsurancePlan{}, storage.ErrNotFound
	}
	return p, nil
}

func (m *memStore) GetMemberPlanAssociation(_ context.Context, teamMemberID, planID string) (*model.MemberPlanAssociation, error) {
	for _, a := range m.assocs {
		if a.TeamMemberID == teamMemberID && a.InsurancePlanID == planID {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) CountMemberAssociations(_ context.Context, teamMemberID string) (int, error) {
	n := 0
	for _, a := range m.assocs {
		if a.TeamMemberID == teamMemberID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListInsurancePlans(_ context.Context, professionalID string) ([]model.InsurancePlan, error) {
	var out []model.InsurancePlan
	for _, id := range []string{"plan-1", "plan-2", "plan-3"} {
		if p, ok := m.plans[id]; ok && p.ProfessionalID == professionalID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListMemberAssociations(_ context.Context, teamMemberID string) ([]model.MemberPlanAssociation, error) {
	var out []model.MemberPlanAssociation
	for _, a := range m.assocs {
		if a.TeamMemberID == teamMemberID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) AdjustInsuranceUsage(_ context.Context, planID, teamMemberID string, delta int) error {
	p := m.plans[planID]
	p.CurrentAppointments += delta
	m.plans[planID] = p
	for i := range m.assocs {
		if m.assocs[i].TeamMemberID == teamMemberID && m.assocs[i].InsurancePlanID == planID {
			m.assocs[i].CurrentAppointments += delta
		}
	}
	return nil
}

func (m *memStore) InsertAppointment(_ context.Context, a *model.Appointment) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	a.CreatedAt = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	m.appointments = append(m.appointments, *a)
	return nil
}

func (m *memStore) UpdateAppointmentTimes(_ context.Context, a model.Appointment) error {
	for i := range m.appointments {
		if m.appointments[i].ID == a.ID && m.appointments[i].Scheduled() {
			m.appointments[i].TeamMemberID = a.TeamMemberID
			m.appointments[i].Date = a.Date
			m.appointments[i].StartTime = a.StartTime
			m.appointments[i].EndTime = a.EndTime
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) CancelAppointment(_ context.Context, professionalID, id, reason string) error {
	for i := range m.appointments {
		a := &m.appointments[i]
		if a.ID == id && a.ProfessionalID == professionalID && a.Scheduled() {
			a.Status = model.StatusCanceled
			a.CancelReason = reason
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) GetAppointment(_ context.Context, professionalID, id string) (model.Appointment, error) {
	for _, a := range m.appointments {
		if a.ID == id && a.ProfessionalID == professionalID {
			return a, nil
		}
	}
	return model.Appointment{}, storage.ErrNotFound
}

func (m *memStore) GetAppointmentForUpdate(ctx context.Context, professionalID, id string) (model.Appointment, error) {
	return m.GetAppointment(ctx, professionalID, id)
}

func (m *memStore) ListAppointments(_ context.Context, q storage.AppointmentQuery) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.ProfessionalID == q.ProfessionalID && (q.Status == "" || a.Status == q.Status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) ListTemplatesByProfessional(ctx context.Context, professionalID string) ([]model.ScheduleTemplate, error) {
	return m.ListTemplates(ctx, model.TemplateFilter{ProfessionalID: professionalID})
}

func (m *memStore) CreateTemplate(_ context.Context, t model.ScheduleTemplate) error {
	m.templates = append(m.templates, t)
	return nil
}

func (m *memStore) UpdateTemplate(_ context.Context, t model.ScheduleTemplate) error {
	for i := range m.templates {
		if m.templates[i].ID == t.ID && m.templates[i].ProfessionalID == t.ProfessionalID {
			m.templates[i] = t
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) DeleteTemplate(_ context.Context, professionalID, id string) error {
	for i, t := range m.templates {
		if t.ID == id && t.ProfessionalID == professionalID {
			m.templates = append(m.templates[:i], m.templates[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) LockIdempotencyKey(_ context.Context, professionalID, key, requestHash string) (storage.IdempotencyRecord, bool, error) {
	k := professionalID + "/" + key
	if rec, ok := m.idem[k]; ok {
		return rec, true, nil
	}
	rec := storage.IdempotencyRecord{ProfessionalID: professionalID, Key: key, RequestHash: requestHash}
	m.idem[k] = rec
	return rec, false, nil
}

func (m *memStore) FinalizeIdempotency(_ context.Context, professionalID, key, appointmentID string) error {
	k := professionalID + "/" + key
	rec := m.idem[k]
	rec.AppointmentID = appointmentID
	m.idem[k] = rec
	return nil
}

func (m *memStore) GetEntitlement(context.Context, string) (string, error) {
	return m.tier, nil
}

func (m *memStore) AppendEvent(_ context.Context, evt outbox.Event) error {
	m.events = append(m.events, evt)
	return nil
}

func (m *memStore) InTx(_ context.Context, fn func(Store) error) error {
	appts := append([]model.Appointment(nil), m.appointments...)
	events := append([]outbox.Event(nil), m.events...)
	assocs := append([]model.MemberPlanAssociation(nil), m.assocs...)
	plans := make(map[string]model.InsurancePlan, len(m.plans))
	for k, v := range m.plans {
		plans[k] = v
	}
	idem := make(map[string]storage.IdempotencyRecord, len(m.idem))
	for k, v := range m.idem {
		idem[k] = v
	}
	if err := fn(m); err != nil {
		m.appointments, m.events, m.assocs, m.plans, m.idem = appts, events, assocs, plans, idem
		return err
	}
	if m.onCommit != nil {
		m.onCommit()
	}
	return nil
}

type stubLocker struct {
	held     bool
	err      error
	acquired []string
	released int
}

func (l *stubLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.acquired = append(l.acquired, key)
	return func() { l.released++ }, true, nil
}
