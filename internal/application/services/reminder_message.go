package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
)

const reminderTimeFormat = "Monday, January 2, 2006 at 3:04 PM"

// buildReminderMessage renders the patient-facing reminder text for a window
func buildReminderMessage(rt entities.ReminderType, appointment *entities.Appointment, doctor *entities.Doctor, contact *entities.Contact, loc *time.Location) string {
	var b strings.Builder

	b.WriteString("🔔 Appointment Reminder\n\n")
	fmt.Fprintf(&b, "Hi %s,\n\n", contact.Name)
	fmt.Fprintf(&b, "This is a reminder that you have an appointment in %s hours.\n\n", rt.Hours())
	fmt.Fprintf(&b, "📅 Date & Time: %s\n", appointment.ScheduledAt.In(loc).Format(reminderTimeFormat))
	fmt.Fprintf(&b, "👨‍⚕️ Doctor: %s\n\n", doctor.DisplayName())
	b.WriteString("Please arrive 10 minutes early.\n\n")
	b.WriteString("Reply CANCEL to cancel or RESCHEDULE to reschedule.")

	return b.String()
}

// buildReminderSubject renders the subject line for email reminders
func buildReminderSubject(rt entities.ReminderType) string {
	return fmt.Sprintf("Appointment Reminder - %s hours", rt.Hours())
}
