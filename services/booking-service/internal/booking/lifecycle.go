package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	otelx "github.com/agendly/agendly/libs/otel"
	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/conflict"
	"github.com/agendly/agendly/services/booking-service/internal/insurance"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/outbox"
	"github.com/agendly/agendly/services/booking-service/internal/slotlock"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

// Request creates or moves an appointment.
type Request struct {
	ProfessionalID  string        `json:"-"`
	TeamMemberID    string        `json:"team_member_id"`
	ServiceID       string        `json:"service_id"`
	InsurancePlanID string        `json:"insurance_plan_id"`
	Date            calendar.Date `json:"date"`
	StartTime       string        `json:"start_time"`
	EndTime         string        `json:"end_time"`
	ClientName      string        `json:"client_name"`
	ClientEmail     string        `json:"client_email"`
	ClientPhone     string        `json:"client_phone"`
	Notes           string        `json:"notes"`
	Source          string        `json:"source"`
	IdempotencyKey  string        `json:"-"`
}

func (r *Request) normalize() {
	r.TeamMemberID = strings.TrimSpace(r.TeamMemberID)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.InsurancePlanID = strings.TrimSpace(r.InsurancePlanID)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.EndTime = strings.TrimSpace(r.EndTime)
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.ClientEmail = strings.TrimSpace(r.ClientEmail)
	r.ClientPhone = strings.TrimSpace(r.ClientPhone)
	r.Notes = strings.TrimSpace(r.Notes)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	if r.Source == "" {
		r.Source = model.SourceClient
	}
}

func (r Request) candidate(excludeID string) conflict.Candidate {
	return conflict.Candidate{
		ProfessionalID:       r.ProfessionalID,
		TeamMemberID:         r.TeamMemberID,
		Date:                 r.Date,
		StartTime:            r.StartTime,
		EndTime:              r.EndTime,
		ExcludeAppointmentID: excludeID,
	}
}

// hash fingerprints the fields that decide what gets booked.
func (r Request) hash() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		r.ProfessionalID, r.TeamMemberID, r.ServiceID, r.InsurancePlanID,
		r.Date.String(), r.StartTime, r.EndTime,
		strings.ToLower(r.ClientName), strings.ToLower(r.ClientEmail), r.ClientPhone,
		r.Source,
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Book validates and stores a new appointment. A repeated IdempotencyKey with the
// same request returns the appointment stored the first time.
func (s *Service) Book(ctx context.Context, req Request) (appt model.Appointment, err error) {
	ctx, span := otelx.Tracer("booking").Start(ctx, "booking.Book")
	replayed := false
	defer func() {
		label := outcome(err)
		if replayed && err == nil {
			label = "replayed"
		}
		s.metrics.ObserveBooking("book", label)
		if err != nil && !expected(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req.normalize()
	if err := s.validate(req); err != nil {
		return model.Appointment{}, err
	}
	span.SetAttributes(
		attribute.String("booking.professional_id", req.ProfessionalID),
		attribute.String("booking.date", req.Date.String()),
		attribute.String("booking.start", req.StartTime),
	)

	// The hold is released only after the transaction has committed.
	release := func() {}
	defer func() { release() }()

	now := s.now()
	err = s.store.InTx(ctx, func(tx Store) error {
		if req.IdempotencyKey != "" {
			rec, existed, err := tx.LockIdempotencyKey(ctx, req.ProfessionalID, req.IdempotencyKey, req.hash())
			if err != nil {
				return err
			}
			if existed {
				if rec.RequestHash != req.hash() {
					return ErrIdempotencyMismatch
				}
				if rec.AppointmentID != "" {
					appt, err = tx.GetAppointment(ctx, req.ProfessionalID, rec.AppointmentID)
					replayed = err == nil
					return err
				}
			}
		}

		held, err := s.hold(ctx, req)
		if err != nil {
			return err
		}
		release = held

		blocked, err := s.quotaBlocked(ctx, tx, req.ProfessionalID)
		if err != nil {
			return err
		}
		if blocked {
			return ErrQuotaExceeded
		}
		if err := s.checkInsurance(ctx, tx, req); err != nil {
			return err
		}
		if err := s.checkSlot(ctx, tx, req.candidate("")); err != nil {
			return err
		}

		appt = model.Appointment{
			ID:              uuid.NewString(),
			ProfessionalID:  req.ProfessionalID,
			TeamMemberID:    req.TeamMemberID,
			ServiceID:       req.ServiceID,
			InsurancePlanID: req.InsurancePlanID,
			Date:            req.Date,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			ClientName:      req.ClientName,
			ClientEmail:     req.ClientEmail,
			ClientPhone:     req.ClientPhone,
			Status:          model.StatusScheduled,
			Source:          req.Source,
			Notes:           req.Notes,
		}
		if err := tx.InsertAppointment(ctx, &appt); err != nil {
			if storage.IsConflict(err) {
				return &ConflictError{RaceLost: true}
			}
			return err
		}
		if req.InsurancePlanID != "" {
			if err := tx.AdjustInsuranceUsage(ctx, req.InsurancePlanID, req.TeamMemberID, 1); err != nil {
				return err
			}
		}
		if err := appendEvent(ctx, tx, outbox.EventAppointmentBooked, appt, "", now); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			return tx.FinalizeIdempotency(ctx, req.ProfessionalID, req.IdempotencyKey, appt.ID)
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Reschedule moves a scheduled appointment to the times in req. Client details on
// the stored appointment are kept.
func (s *Service) Reschedule(ctx context.Context, appointmentID string, req Request) (appt model.Appointment, err error) {
	ctx, span := otelx.Tracer("booking").Start(ctx, "booking.Reschedule")
	defer func() {
		s.metrics.ObserveBooking("reschedule", outcome(err))
		if err != nil && !expected(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req.normalize()
	if err := asInvalid(req.candidate(appointmentID).Validate()); err != nil {
		return model.Appointment{}, err
	}

	// Resolve the team member up front so the slot hold covers the commit.
	inherited := req.TeamMemberID == ""
	if inherited {
		current, err := s.store.GetAppointment(ctx, req.ProfessionalID, appointmentID)
		if err != nil {
			if storage.IsNotFound(err) {
				return model.Appointment{}, ErrNotFound
			}
			return model.Appointment{}, err
		}
		req.TeamMemberID = current.TeamMemberID
	}
	release, err := s.hold(ctx, req)
	if err != nil {
		return model.Appointment{}, err
	}
	defer release()

	err = s.store.InTx(ctx, func(tx Store) error {
		existing, err := tx.GetAppointmentForUpdate(ctx, req.ProfessionalID, appointmentID)
		if err != nil {
			if storage.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if !existing.Scheduled() {
			return ErrNotReschedulable
		}
		if inherited && existing.TeamMemberID != req.TeamMemberID {
			return &ConflictError{RaceLost: true}
		}

		if err := s.checkSlot(ctx, tx, req.candidate(appointmentID)); err != nil {
			return err
		}
		changesHands := existing.TeamMemberID != req.TeamMemberID && existing.InsurancePlanID != ""
		if changesHands {
			if err := s.checkMemberInsurance(ctx, tx, existing.InsurancePlanID, req.TeamMemberID); err != nil {
				return err
			}
		}

		appt = existing
		appt.TeamMemberID = req.TeamMemberID
		appt.Date = req.Date
		appt.StartTime = req.StartTime
		appt.EndTime = req.EndTime
		if err := tx.UpdateAppointmentTimes(ctx, appt); err != nil {
			if storage.IsConflict(err) {
				return &ConflictError{RaceLost: true}
			}
			if storage.IsNotFound(err) {
				return ErrNotReschedulable
			}
			return err
		}
		if changesHands {
			if err := tx.AdjustInsuranceUsage(ctx, existing.InsurancePlanID, existing.TeamMemberID, -1); err != nil {
				return err
			}
			if err := tx.AdjustInsuranceUsage(ctx, existing.InsurancePlanID, appt.TeamMemberID, 1); err != nil {
				return err
			}
		}
		return appendEvent(ctx, tx, outbox.EventAppointmentRescheduled, appt, "", s.now())
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Cancel marks a scheduled appointment canceled and frees its insurance usage.
// Canceling an already canceled appointment returns it unchanged.
func (s *Service) Cancel(ctx context.Context, professionalID, appointmentID, reason string) (appt model.Appointment, err error) {
	return s.cancel(ctx, professionalID, appointmentID, strings.TrimSpace(reason), nil)
}

// CancelByClient cancels on behalf of the client, who proves ownership with the
// email or phone given when booking.
func (s *Service) CancelByClient(ctx context.Context, professionalID, appointmentID, contact, reason string) (model.Appointment, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return model.Appointment{}, invalid("email or phone required")
	}
	return s.cancel(ctx, professionalID, appointmentID, strings.TrimSpace(reason), func(a model.Appointment) bool {
		return strings.EqualFold(a.ClientEmail, contact) || (a.ClientPhone != "" && a.ClientPhone == contact)
	})
}

func (s *Service) cancel(ctx context.Context, professionalID, appointmentID, reason string, owns func(model.Appointment) bool) (appt model.Appointment, err error) {
	ctx, span := otelx.Tracer("booking").Start(ctx, "booking.Cancel")
	defer func() {
		s.metrics.ObserveCancel(outcome(err))
		if err != nil && !expected(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	err = s.store.InTx(ctx, func(tx Store) error {
		existing, err := tx.GetAppointmentForUpdate(ctx, professionalID, appointmentID)
		if err != nil {
			if storage.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if owns != nil && !owns(existing) {
			return ErrNotFound
		}
		appt = existing
		switch existing.Status {
		case model.StatusCanceled:
			return nil
		case model.StatusScheduled:
		default:
			return ErrNotCancelable
		}

		if err := tx.CancelAppointment(ctx, professionalID, appointmentID, reason); err != nil {
			if storage.IsNotFound(err) {
				return ErrNotCancelable
			}
			return err
		}
		appt.Status = model.StatusCanceled
		appt.CancelReason = reason
		if appt.InsurancePlanID != "" {
			if err := tx.AdjustInsuranceUsage(ctx, appt.InsurancePlanID, appt.TeamMemberID, -1); err != nil {
				return err
			}
		}
		return appendEvent(ctx, tx, outbox.EventAppointmentCanceled, appt, reason, s.now())
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) validate(req Request) error {
	if err := asInvalid(req.candidate("").Validate()); err != nil {
		return err
	}
	if req.ClientName == "" {
		return invalid("client name required")
	}
	if req.ClientEmail == "" && req.ClientPhone == "" {
		return invalid("client email or phone required")
	}
	switch req.Source {
	case model.SourceClient:
		span, _ := req.candidate("").Span()
		now := s.now()
		today := calendar.DateOf(now)
		if req.Date.Before(today) || (req.Date.Equal(today) && span.Start < now.Hour()*60+now.Minute()) {
			return invalid("requested time has already passed")
		}
	case model.SourceManual:
	default:
		return invalid("unknown source %q", req.Source)
	}
	return nil
}

// hold takes the advisory slot lock. Lock backend failures fall through to the
// storage constraint.
func (s *Service) hold(ctx context.Context, req Request) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := slotlock.Key(req.ProfessionalID, req.TeamMemberID, req.Date.String(), req.StartTime)
	release, ok, err := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "slot lock unavailable", "key", key, "err", err)
		return func() {}, nil
	}
	if !ok {
		return nil, &ConflictError{RaceLost: true}
	}
	return release, nil
}

func (s *Service) checkInsurance(ctx context.Context, tx Store, req Request) error {
	if req.InsurancePlanID == "" {
		return nil
	}
	plan, err := tx.GetInsurancePlan(ctx, req.ProfessionalID, req.InsurancePlanID)
	if err != nil {
		if storage.IsNotFound(err) {
			return invalid("unknown insurance plan")
		}
		return err
	}
	assoc, err := memberAssociation(ctx, tx, plan.ID, req.TeamMemberID)
	if err != nil {
		return err
	}
	if insurance.IsLimitReached(plan, assoc) {
		return ErrInsuranceLimit
	}
	return nil
}

// checkMemberInsurance admits an existing appointment to another team member.
// Plan-wide usage is unchanged by the move, so only the member side is checked.
func (s *Service) checkMemberInsurance(ctx context.Context, tx Store, planID, teamMemberID string) error {
	assoc, err := memberAssociation(ctx, tx, planID, teamMemberID)
	if err != nil {
		return err
	}
	if insurance.IsLimitReached(model.InsurancePlan{ID: planID}, assoc) {
		return ErrInsuranceLimit
	}
	return nil
}

// memberAssociation returns nil when the member has no plan rows at all, which
// accepts every plan. A member with rows but none for planID does not accept it.
func memberAssociation(ctx context.Context, tx Store, planID, teamMemberID string) (*model.MemberPlanAssociation, error) {
	if teamMemberID == "" {
		return nil, nil
	}
	assoc, err := tx.GetMemberPlanAssociation(ctx, teamMemberID, planID)
	if err != nil || assoc != nil {
		return assoc, err
	}
	n, err := tx.CountMemberAssociations(ctx, teamMemberID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: plan not accepted by this team member", ErrInsuranceLimit)
	}
	return nil, nil
}

func (s *Service) checkSlot(ctx context.Context, tx Store, c conflict.Candidate) error {
	v := conflict.NewValidator(tx)
	within, err := v.ValidateBusinessHours(ctx, c)
	if err != nil {
		return asInvalid(err)
	}
	if !within {
		return ErrOutsideBusinessHours
	}
	res, err := v.CheckTimeConflict(ctx, c)
	if err != nil {
		return asInvalid(err)
	}
	if res.HasConflict {
		return &ConflictError{Conflict: res.Conflict}
	}
	return nil
}

func appendEvent(ctx context.Context, tx Store, eventType string, a model.Appointment, reason string, now time.Time) error {
	evt, err := outbox.NewEvent(eventType, a.ID, outbox.AppointmentPayload{
		AppointmentID:   a.ID,
		ProfessionalID:  a.ProfessionalID,
		TeamMemberID:    a.TeamMemberID,
		InsurancePlanID: a.InsurancePlanID,
		Date:            a.Date.String(),
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		ClientName:      a.ClientName,
		ClientEmail:     a.ClientEmail,
		ClientPhone:     a.ClientPhone,
		Status:          a.Status,
		Source:          a.Source,
		Reason:          reason,
		OccurredAt:      now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return tx.AppendEvent(ctx, evt)
}

// expected errors are client outcomes, not span failures.
func expected(err error) bool {
	return outcome(err) != "error"
}
