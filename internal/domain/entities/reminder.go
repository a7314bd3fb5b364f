package entities

import "time"

// ReminderType identifies the fixed lead-time window of a reminder
type ReminderType string

const (
	ReminderType24hBefore ReminderType = "24h_before"
	ReminderType2hBefore  ReminderType = "2h_before"
)

// ReminderTypes lists all windows evaluated by the scheduler, longest first
var ReminderTypes = []ReminderType{ReminderType24hBefore, ReminderType2hBefore}

// Window returns the lead time before the appointment at which the reminder fires
func (t ReminderType) Window() time.Duration {
	switch t {
	case ReminderType24hBefore:
		return 24 * time.Hour
	case ReminderType2hBefore:
		return 2 * time.Hour
	}
	return 0
}

// Hours returns the human-facing hour count used in reminder copy
func (t ReminderType) Hours() string {
	if t == ReminderType24hBefore {
		return "24"
	}
	return "2"
}

// Valid reports whether the reminder type is recognized
func (t ReminderType) Valid() bool {
	return t == ReminderType24hBefore || t == ReminderType2hBefore
}

// ReminderChannel is the delivery channel of a reminder
type ReminderChannel string

const (
	ChannelWhatsApp ReminderChannel = "whatsapp"
	ChannelEmail    ReminderChannel = "email"
	ChannelSMS      ReminderChannel = "sms"
)

// Valid reports whether the channel is recognized
func (c ReminderChannel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelEmail || c == ChannelSMS
}

// ReminderStatus is the lifecycle status of a reminder
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusFailed    ReminderStatus = "failed"
	ReminderStatusCancelled ReminderStatus = "cancelled"
)

// AppointmentReminder is a materialized reminder owned by exactly one appointment.
// At most one non-cancelled reminder exists per (appointment, reminder_type).
type AppointmentReminder struct {
	ID            string          `json:"id" db:"id"`
	AppointmentID string          `json:"appointment_id" db:"appointment_id"`
	ReminderType  ReminderType    `json:"reminder_type" db:"reminder_type"`
	Channel       ReminderChannel `json:"channel" db:"channel"`
	Status        ReminderStatus  `json:"status" db:"status"`
	ScheduledFor  time.Time       `json:"scheduled_for" db:"scheduled_for"`
	SentAt        *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	ErrorMessage  *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Live reports whether the reminder blocks creation of another reminder of the
// same type for its appointment. Cancelled and failed reminders do not.
func (r *AppointmentReminder) Live() bool {
	return r.Status == ReminderStatusPending || r.Status == ReminderStatusSent
}
