package handlers

import (
	"net/http"
	"strings"

	"github.com/agendly/agendly/libs/httpx"
	"github.com/agendly/agendly/services/booking-service/internal/booking"
	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

// resolve looks up the professional named by slug, writing the error response itself.
func (h *BookingHandler) resolve(w http.ResponseWriter, r *http.Request, slug string) (model.Professional, bool) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "slug is required")
		return model.Professional{}, false
	}
	p, err := h.pros.BySlug(r.Context(), slug)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, r, http.StatusNotFound, "professional not found")
			return model.Professional{}, false
		}
		h.logger.ErrorContext(r.Context(), "professional lookup failed", "err", err, "slug", slug)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return model.Professional{}, false
	}
	return p, true
}

func (h *BookingHandler) Professional(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	p, ok := h.resolve(w, r, r.URL.Query().Get("slug"))
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

type datesResponse struct {
	booking.DatesResult
	UpgradeURL string `json:"upgrade_url,omitempty"`
}

func (h *BookingHandler) Dates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()
	p, ok := h.resolve(w, r, q.Get("slug"))
	if !ok {
		return
	}
	res, err := h.svc.AvailableDates(r.Context(), p.ID, strings.TrimSpace(q.Get("team_member_id")))
	if err != nil {
		h.writeServiceError(w, r, p.ID, err)
		return
	}
	if res.Dates == nil {
		res.Dates = []calendar.Date{}
	}
	resp := datesResponse{DatesResult: res}
	if res.QuotaExceeded {
		resp.UpgradeURL = h.upgradeURL(r.Context(), p.ID)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type slotsResponse struct {
	booking.SlotsResult
	UpgradeURL string `json:"upgrade_url,omitempty"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()
	date, err := calendar.ParseDate(q.Get("date"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid date")
		return
	}
	p, ok := h.resolve(w, r, q.Get("slug"))
	if !ok {
		return
	}
	res, err := h.svc.Slots(r.Context(), p.ID, strings.TrimSpace(q.Get("team_member_id")), date)
	if err != nil {
		h.writeServiceError(w, r, p.ID, err)
		return
	}
	resp := slotsResponse{SlotsResult: res}
	if res.QuotaExceeded {
		resp.UpgradeURL = h.upgradeURL(r.Context(), p.ID)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) InsurancePlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	q := r.URL.Query()
	p, ok := h.resolve(w, r, q.Get("slug"))
	if !ok {
		return
	}
	plans, err := h.svc.InsurancePlans(r.Context(), p.ID, strings.TrimSpace(q.Get("team_member_id")))
	if err != nil {
		h.writeServiceError(w, r, p.ID, err)
		return
	}
	if plans == nil {
		plans = []model.InsurancePlan{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

type publicBookRequest struct {
	Slug string `json:"slug"`
	booking.Request
}

func (h *BookingHandler) PublicBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req publicBookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	p, ok := h.resolve(w, r, req.Slug)
	if !ok {
		return
	}
	breq := req.Request
	breq.ProfessionalID = p.ID
	breq.Source = model.SourceClient
	breq.IdempotencyKey = r.Header.Get("Idempotency-Key")

	appt, err := h.svc.Book(r.Context(), breq)
	if err != nil {
		h.writeServiceError(w, r, p.ID, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

type publicCancelRequest struct {
	Slug          string `json:"slug"`
	AppointmentID string `json:"appointment_id"`
	Contact       string `json:"contact"`
	Reason        string `json:"reason"`
}

func (h *BookingHandler) PublicCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req publicCancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.AppointmentID) == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "appointment_id is required")
		return
	}
	p, ok := h.resolve(w, r, req.Slug)
	if !ok {
		return
	}
	appt, err := h.svc.CancelByClient(r.Context(), p.ID, strings.TrimSpace(req.AppointmentID), req.Contact, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, p.ID, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}
