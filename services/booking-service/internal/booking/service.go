// Package booking orchestrates availability queries and the booking lifecycle on
// top of the pure engine packages and the storage collaborator.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agendly/agendly/services/booking-service/internal/availability"
	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/conflict"
	"github.com/agendly/agendly/services/booking-service/internal/insurance"
	"github.com/agendly/agendly/services/booking-service/internal/metrics"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/quota"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

// Locker holds a slot while a booking is validated and written.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type Config struct {
	HorizonDays int
	LockTTL     time.Duration
	// Location defines "today" and "now" for every professional.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	store   Store
	locker  Locker
	metrics *metrics.BookingMetrics
	logger  *slog.Logger
	cfg     Config
}

func NewService(store Store, locker Locker, m *metrics.BookingMetrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = availability.DefaultHorizonDays
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, locker: locker, metrics: m, logger: logger, cfg: cfg}
}

func (s *Service) now() time.Time { return s.cfg.Now().In(s.cfg.Location) }

func (s *Service) Today() calendar.Date { return calendar.DateOf(s.now()) }

type DatesResult struct {
	Dates         []calendar.Date `json:"dates"`
	QuotaExceeded bool            `json:"quota_exceeded"`
}

// AvailableDates lists bookable dates over the horizon for teamMemberID.
func (s *Service) AvailableDates(ctx context.Context, professionalID, teamMemberID string) (DatesResult, error) {
	start := time.Now()
	blocked, err := s.quotaBlocked(ctx, s.store, professionalID)
	if err != nil {
		return DatesResult{}, err
	}
	var templates []model.ScheduleTemplate
	if !blocked && teamMemberID != "" {
		templates, err = s.store.ListTemplates(ctx, model.TemplateFilter{
			ProfessionalID: professionalID,
			TeamMemberID:   teamMemberID,
			AvailableOnly:  true,
		})
		if err != nil {
			return DatesResult{}, err
		}
	}
	dates := availability.AvailableDates(templates, availability.DatesRequest{
		Today:         s.Today(),
		HorizonDays:   s.cfg.HorizonDays,
		TeamMemberID:  teamMemberID,
		QuotaExceeded: blocked,
	})
	s.metrics.ObserveAvailability("dates", len(dates), time.Since(start))
	return DatesResult{Dates: dates, QuotaExceeded: blocked}, nil
}

type SlotsResult struct {
	Date          calendar.Date         `json:"date"`
	Slots         []model.AvailableSlot `json:"slots"`
	QuotaExceeded bool                  `json:"quota_exceeded"`
}

// Slots computes the free slots on date, sorted by start time. Past dates have none.
func (s *Service) Slots(ctx context.Context, professionalID, teamMemberID string, date calendar.Date) (SlotsResult, error) {
	start := time.Now()
	res := SlotsResult{Date: date, Slots: []model.AvailableSlot{}}
	now := s.now()
	if date.Before(calendar.DateOf(now)) {
		return res, nil
	}

	blocked, err := s.quotaBlocked(ctx, s.store, professionalID)
	if err != nil {
		return SlotsResult{}, err
	}
	if blocked {
		res.QuotaExceeded = true
		return res, nil
	}

	weekday := int(date.Weekday())
	templates, err := s.store.ListTemplates(ctx, model.TemplateFilter{
		ProfessionalID: professionalID,
		DayOfWeek:      &weekday,
		TeamMemberID:   teamMemberID,
		AvailableOnly:  true,
	})
	if err != nil {
		return SlotsResult{}, err
	}
	if len(templates) == 0 {
		return res, nil
	}
	booked, err := s.store.ListScheduledAppointments(ctx, model.AppointmentFilter{
		ProfessionalID: professionalID,
		Date:           date,
		TeamMemberID:   teamMemberID,
	})
	if err != nil {
		return SlotsResult{}, err
	}

	slots := availability.SortSlots(availability.GenerateSlots(templates, booked, date, now))
	if slots != nil {
		res.Slots = slots
	}
	s.metrics.ObserveAvailability("slots", len(res.Slots), time.Since(start))
	return res, nil
}

// InsurancePlans lists plans a client may pick for teamMemberID.
func (s *Service) InsurancePlans(ctx context.Context, professionalID, teamMemberID string) ([]model.InsurancePlan, error) {
	plans, err := s.store.ListInsurancePlans(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	var assocs []model.MemberPlanAssociation
	if teamMemberID != "" {
		assocs, err = s.store.ListMemberAssociations(ctx, teamMemberID)
		if err != nil {
			return nil, err
		}
	}
	return insurance.FilterPlans(plans, assocs, teamMemberID), nil
}

type QuotaStatus struct {
	quota.Usage
	Tier    string `json:"tier"`
	Blocked bool   `json:"blocked"`
}

// Quota reports the month's usage. Premium tiers are never blocked.
func (s *Service) Quota(ctx context.Context, professionalID string) (QuotaStatus, error) {
	tier, err := s.store.GetEntitlement(ctx, professionalID)
	if err != nil {
		return QuotaStatus{}, err
	}
	usage, err := quota.NewGuard(s.store).Check(ctx, professionalID, s.now())
	if err != nil {
		return QuotaStatus{}, err
	}
	return QuotaStatus{Usage: usage, Tier: tier, Blocked: usage.OverLimit && !premium(tier)}, nil
}

type CheckResult struct {
	conflict.Result
	WithinBusinessHours bool `json:"within_business_hours"`
}

// Check runs both validators without writing anything.
func (s *Service) Check(ctx context.Context, c conflict.Candidate) (CheckResult, error) {
	v := conflict.NewValidator(s.store)
	res, err := v.CheckTimeConflict(ctx, c)
	if err != nil {
		return CheckResult{}, asInvalid(err)
	}
	within, err := v.ValidateBusinessHours(ctx, c)
	if err != nil {
		return CheckResult{}, asInvalid(err)
	}
	return CheckResult{Result: res, WithinBusinessHours: within}, nil
}

func (s *Service) Appointments(ctx context.Context, q storage.AppointmentQuery) ([]model.Appointment, error) {
	return s.store.ListAppointments(ctx, q)
}

// quotaBlocked skips counting entirely for premium professionals.
func (s *Service) quotaBlocked(ctx context.Context, st Store, professionalID string) (bool, error) {
	tier, err := st.GetEntitlement(ctx, professionalID)
	if err != nil {
		return false, err
	}
	if premium(tier) {
		return false, nil
	}
	usage, err := quota.NewGuard(st).Check(ctx, professionalID, s.now())
	if err != nil {
		return false, err
	}
	return usage.OverLimit, nil
}

func premium(tier string) bool {
	return tier != "" && tier != storage.TierFree
}

func asInvalid(err error) error {
	if errors.Is(err, conflict.ErrInvalidCandidate) {
		return invalid("%v", err)
	}
	return err
}
