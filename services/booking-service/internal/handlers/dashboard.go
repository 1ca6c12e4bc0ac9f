package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/agendly/agendly/libs/httpx"
	"github.com/agendly/agendly/services/booking-service/internal/booking"
	"github.com/agendly/agendly/services/booking-service/internal/calendar"
	"github.com/agendly/agendly/services/booking-service/internal/conflict"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	proID, ok := professionalFromClaims(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusForbidden, "token is not bound to a professional")
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.listAppointments(w, r, proID)
	case http.MethodPost:
		h.createAppointment(w, r, proID)
	default:
		methodNotAllowed(w, r)
	}
}

func (h *BookingHandler) listAppointments(w http.ResponseWriter, r *http.Request, proID string) {
	q := r.URL.Query()
	query := storage.AppointmentQuery{ProfessionalID: proID, Status: strings.TrimSpace(q.Get("status"))}
	var err error
	if v := q.Get("from"); v != "" {
		if query.From, err = calendar.ParseDate(v); err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid from")
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if query.To, err = calendar.ParseDate(v); err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid to")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if query.Limit, err = strconv.Atoi(v); err != nil || query.Limit <= 0 {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	items, err := h.svc.Appointments(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, r, proID, err)
		return
	}
	if items == nil {
		items = []model.Appointment{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *BookingHandler) createAppointment(w http.ResponseWriter, r *http.Request, proID string) {
	var req booking.Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	req.ProfessionalID = proID
	req.Source = model.SourceManual
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	appt, err := h.svc.Book(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, proID, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

type rescheduleRequest struct {
	AppointmentID string        `json:"appointment_id"`
	TeamMemberID  string        `json:"team_member_id"`
	Date          calendar.Date `json:"date"`
	StartTime     string        `json:"start_time"`
	EndTime       string        `json:"end_time"`
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	proID, ok := professionalFromClaims(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusForbidden, "token is not bound to a professional")
		return
	}
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.AppointmentID) == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "appointment_id is required")
		return
	}
	appt, err := h.svc.Reschedule(r.Context(), strings.TrimSpace(req.AppointmentID), booking.Request{
		ProfessionalID: proID,
		TeamMemberID:   req.TeamMemberID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	})
	if err != nil {
		h.writeServiceError(w, r, proID, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	proID, ok := professionalFromClaims(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusForbidden, "token is not bound to a professional")
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.AppointmentID) == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "appointment_id is required")
		return
	}
	appt, err := h.svc.Cancel(r.Context(), proID, strings.TrimSpace(req.AppointmentID), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, proID, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

type checkRequest struct {
	AppointmentID string        `json:"appointment_id"`
	TeamMemberID  string        `json:"team_member_id"`
	Date          calendar.Date `json:"date"`
	StartTime     string        `json:"start_time"`
	EndTime       string        `json:"end_time"`
}

type checkResponse struct {
	booking.CheckResult
	Message string `json:"message,omitempty"`
}

// Check lets the dashboard warn about a collision before saving.
func (h *BookingHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	proID, ok := professionalFromClaims(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusForbidden, "token is not bound to a professional")
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := h.svc.Check(r.Context(), conflict.Candidate{
		ProfessionalID:       proID,
		TeamMemberID:         strings.TrimSpace(req.TeamMemberID),
		Date:                 req.Date,
		StartTime:            strings.TrimSpace(req.StartTime),
		EndTime:              strings.TrimSpace(req.EndTime),
		ExcludeAppointmentID: strings.TrimSpace(req.AppointmentID),
	})
	if err != nil {
		h.writeServiceError(w, r, proID, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, checkResponse{CheckResult: res, Message: res.Message()})
}

func (h *BookingHandler) Templates(w http.ResponseWriter, r *http.Request) {
	proID, ok := professionalFromClaims(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusForbidden, "token is not bound to a professional")
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		items, err := h.svc.Templates(ctx, proID)
		if err != nil {
			h.writeServiceError(w, r, proID, err)
			return
		}
		if items == nil {
			items = []model.ScheduleTemplate{}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})

	case http.MethodPost, http.MethodPut:
		var t model.ScheduleTemplate
		if err := httpx.DecodeJSON(r, &t); err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid json body")
			return
		}
		t.ProfessionalID = proID
		status := http.StatusCreated
		var err error
		if r.Method == http.MethodPost {
			t, err = h.svc.CreateTemplate(ctx, t)
		} else {
			if strings.TrimSpace(t.ID) == "" {
				httpx.WriteError(w, r, http.StatusBadRequest, "id is required")
				return
			}
			status = http.StatusOK
			t, err = h.svc.UpdateTemplate(ctx, t)
		}
		if err != nil {
			h.writeServiceError(w, r, proID, err)
			return
		}
		httpx.WriteJSON(w, status, t)

	case http.MethodDelete:
		id := strings.TrimSpace(r.URL.Query().Get("id"))
		if id == "" {
			httpx.WriteError(w, r, http.StatusBadRequest, "id is required")
			return
		}
		if err := h.svc.DeleteTemplate(ctx, proID, id); err != nil {
			h.writeServiceError(w, r, proID, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r)
	}
}

type quotaResponse struct {
	booking.QuotaStatus
	UpgradeURL string `json:"upgrade_url,omitempty"`
}

func (h *BookingHandler) Quota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	proID, ok := professionalFromClaims(r)
	if !ok {
		httpx.WriteError(w, r, http.StatusForbidden, "token is not bound to a professional")
		return
	}
	st, err := h.svc.Quota(r.Context(), proID)
	if err != nil {
		h.writeServiceError(w, r, proID, err)
		return
	}
	resp := quotaResponse{QuotaStatus: st}
	if st.Blocked {
		resp.UpgradeURL = h.upgradeURL(r.Context(), proID)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
