package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agendly/agendly/libs/auth"
	"github.com/agendly/agendly/libs/httpx"
	"github.com/agendly/agendly/services/booking-service/internal/booking"
	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/conflict"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

// BookingService is implemented by *booking.Service.
type BookingService interface {
	AvailableDates(ctx context.Context, professionalID, teamMemberID string) (booking.DatesResult, error)
	Slots(ctx context.Context, professionalID, teamMemberID string, date calendar.Date) (booking.SlotsResult, error)
	InsurancePlans(ctx context.Context, professionalID, teamMemberID string) ([]model.InsurancePlan, error)
	Book(ctx context.Context, req booking.Request) (model.Appointment, error)
	Reschedule(ctx context.Context, appointmentID string, req booking.Request) (model.Appointment, error)
	Cancel(ctx context.Context, professionalID, appointmentID, reason string) (model.Appointment, error)
	CancelByClient(ctx context.Context, professionalID, appointmentID, contact, reason string) (model.Appointment, error)
	Check(ctx context.Context, c conflict.Candidate) (booking.CheckResult, error)
	Appointments(ctx context.Context, q storage.AppointmentQuery) ([]model.Appointment, error)
	Quota(ctx context.Context, professionalID string) (booking.QuotaStatus, error)
	Templates(ctx context.Context, professionalID string) ([]model.ScheduleTemplate, error)
	CreateTemplate(ctx context.Context, t model.ScheduleTemplate) (model.ScheduleTemplate, error)
	UpdateTemplate(ctx context.Context, t model.ScheduleTemplate) (model.ScheduleTemplate, error)
	DeleteTemplate(ctx context.Context, professionalID, id string) error
}

type ProfessionalResolver interface {
	BySlug(ctx context.Context, slug string) (model.Professional, error)
}

// UpgradeLinker returns "" when no upgrade path is configured.
type UpgradeLinker interface {
	CheckoutURL(ctx context.Context, professionalID string) (string, error)
}

type BookingHandler struct {
	svc     BookingService
	pros    ProfessionalResolver
	upgrade UpgradeLinker
	logger  *slog.Logger
}

func NewBookingHandler(svc BookingService, pros ProfessionalResolver, upgrade UpgradeLinker, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, pros: pros, upgrade: upgrade, logger: logger}
}

// Register mounts the public routes as-is and the dashboard routes behind requireAuth.
func (h *BookingHandler) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("/api/v1/public/professionals", h.Professional)
	mux.HandleFunc("/api/v1/public/dates", h.Dates)
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/insurance-plans", h.InsurancePlans)
	mux.HandleFunc("/api/v1/public/book", h.PublicBook)
	mux.HandleFunc("/api/v1/public/cancel", h.PublicCancel)

	mux.Handle("/api/v1/appointments", requireAuth(http.HandlerFunc(h.Appointments)))
	mux.Handle("/api/v1/appointments/reschedule", requireAuth(http.HandlerFunc(h.Reschedule)))
	mux.Handle("/api/v1/appointments/cancel", requireAuth(http.HandlerFunc(h.Cancel)))
	mux.Handle("/api/v1/appointments/check", requireAuth(http.HandlerFunc(h.Check)))
	mux.Handle("/api/v1/templates", requireAuth(http.HandlerFunc(h.Templates)))
	mux.Handle("/api/v1/quota", requireAuth(http.HandlerFunc(h.Quota)))
}

type conflictResponse struct {
	Error     string            `json:"error"`
	Conflict  *conflict.Details `json:"conflict,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type upgradePrompt struct {
	Error      string `json:"error"`
	UpgradeURL string `json:"upgrade_url,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// writeServiceError maps workflow outcomes to status codes.
func (h *BookingHandler) writeServiceError(w http.ResponseWriter, r *http.Request, professionalID string, err error) {
	var ce *booking.ConflictError
	switch {
	case errors.As(err, &ce):
		httpx.WriteJSON(w, http.StatusConflict, conflictResponse{
			Error:     ce.Error(),
			Conflict:  ce.Conflict,
			RequestID: httpx.RequestIDFromContext(r.Context()),
		})
	case errors.Is(err, booking.ErrQuotaExceeded):
		httpx.WriteJSON(w, http.StatusPaymentRequired, upgradePrompt{
			Error:      err.Error(),
			UpgradeURL: h.upgradeURL(r.Context(), professionalID),
			RequestID:  httpx.RequestIDFromContext(r.Context()),
		})
	case errors.Is(err, booking.ErrInvalidRequest):
		httpx.WriteError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrInsuranceLimit),
		errors.Is(err, booking.ErrOutsideBusinessHours),
		errors.Is(err, booking.ErrIdempotencyMismatch):
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrTemplateNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrNotCancelable), errors.Is(err, booking.ErrNotReschedulable):
		httpx.WriteError(w, r, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "booking request failed", "err", err, "path", r.URL.Path)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h *BookingHandler) upgradeURL(ctx context.Context, professionalID string) string {
	if h.upgrade == nil || professionalID == "" {
		return ""
	}
	url, err := h.upgrade.CheckoutURL(ctx, professionalID)
	if err != nil {
		h.logger.WarnContext(ctx, "upgrade link failed", "err", err, "professional_id", professionalID)
		return ""
	}
	return url
}

func professionalFromClaims(r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.ProfessionalID == "" {
		return "", false
	}
	return claims.ProfessionalID, true
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
