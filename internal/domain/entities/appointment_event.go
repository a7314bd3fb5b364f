package entities

import "time"

// AppointmentEventType identifies calendar-relevant appointment changes
type AppointmentEventType string

const (
	AppointmentEventCreated     AppointmentEventType = "created"
	AppointmentEventRescheduled AppointmentEventType = "rescheduled"
	AppointmentEventCancelled   AppointmentEventType = "cancelled"
)

// AppointmentEvent is published on the event bus whenever an appointment
// changes in a way the external calendar cares about. Consumers treat
// delivery as best-effort.
type AppointmentEvent struct {
	ID            string               `json:"id"`
	Type          AppointmentEventType `json:"type"`
	AccountID     string               `json:"account_id"`
	AppointmentID string               `json:"appointment_id"`
	DoctorID      string               `json:"doctor_id"`
	OccurredAt    time.Time            `json:"occurred_at"`
}
