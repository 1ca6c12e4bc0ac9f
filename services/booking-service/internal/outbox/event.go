package outbox

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	EventAppointmentBooked      = "booking.appointment.booked.v1"
	EventAppointmentRescheduled = "booking.appointment.rescheduled.v1"
	EventAppointmentCanceled    = "booking.appointment.canceled.v1"
)

// Event is the envelope written to outbox_events. The Kafka topic equals EventType.
type Event struct {
	EventID     string
	EventType   string
	AggregateID string
	Payload     []byte
}

// NewEvent marshals payload and assigns a fresh event id.
func NewEvent(eventType, aggregateID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     raw,
	}, nil
}

// AppointmentPayload is the body of every booking.appointment.* event.
type AppointmentPayload struct {
	AppointmentID   string `json:"appointment_id"`
	ProfessionalID  string `json:"professional_id"`
	TeamMemberID    string `json:"team_member_id,omitempty"`
	InsurancePlanID string `json:"insurance_plan_id,omitempty"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	ClientName      string `json:"client_name"`
	ClientEmail     string `json:"client_email,omitempty"`
	ClientPhone     string `json:"client_phone,omitempty"`
	Status          string `json:"status"`
	Source          string `json:"source"`
	Reason          string `json:"reason,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}
