package booking

import (
	"context"

	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/outbox"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

// Store is everything the workflow reads and writes. InTx hands fn a Store bound
// to one transaction.
type Store interface {
	ListTemplates(ctx context.Context, f model.TemplateFilter) ([]model.ScheduleTemplate, error)
	ListScheduledAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
	CountScheduledSince(ctx context.Context, professionalID string, since calendar.Date) (int, error)

	GetInsurancePlan(ctx context.Context, professionalID, planID string) (model.InsurancePlan, error)
	GetMemberPlanAssociation(ctx context.Context, teamMemberID, planID string) (*model.MemberPlanAssociation, error)
	CountMemberAssociations(ctx context.Context, teamMemberID string) (int, error)
	ListInsurancePlans(ctx context.Context, professionalID string) ([]model.InsurancePlan, error)
	ListMemberAssociations(ctx context.Context, teamMemberID string) ([]model.MemberPlanAssociation, error)
	AdjustInsuranceUsage(ctx context.Context, planID, teamMemberID string, delta int) error

	InsertAppointment(ctx context.Context, a *model.Appointment) error
	UpdateAppointmentTimes(ctx context.Context, a model.Appointment) error
	CancelAppointment(ctx context.Context, professionalID, id, reason string) error
	GetAppointment(ctx context.Context, professionalID, id string) (model.Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, professionalID, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, q storage.AppointmentQuery) ([]model.Appointment, error)

	ListTemplatesByProfessional(ctx context.Context, professionalID string) ([]model.ScheduleTemplate, error)
	CreateTemplate(ctx context.Context, t model.ScheduleTemplate) error
	UpdateTemplate(ctx context.Context, t model.ScheduleTemplate) error
	DeleteTemplate(ctx context.Context, professionalID, id string) error

	LockIdempotencyKey(ctx context.Context, professionalID, key, requestHash string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, professionalID, key, appointmentID string) error

	GetEntitlement(ctx context.Context, professionalID string) (string, error)
	AppendEvent(ctx context.Context, evt outbox.Event) error

	InTx(ctx context.Context, fn func(Store) error) error
}

type postgresStore struct {
	*storage.Repository
}

// NewPostgresStore adapts a storage.Repository to Store.
func NewPostgresStore(repo *storage.Repository) Store {
	return postgresStore{Repository: repo}
}

func (s postgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	return s.Repository.InTx(ctx, func(tx *storage.Repository) error {
		return fn(postgresStore{Repository: tx})
	})
}
