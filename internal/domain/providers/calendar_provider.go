package providers

import (
	"context"
	"time"
)

// CalendarEvent is the provider-neutral projection of an appointment
// pushed to an external calendar.
type CalendarEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
	Attendees   []string
}

// CalendarProvider syncs appointments to an external calendar. All calls are
// best-effort: failures are logged by the caller and never surfaced to the
// booking path.
type CalendarProvider interface {
	// Sync creates the event when existingEventID is empty, updates it
	// otherwise, and returns the provider event ID.
	Sync(ctx context.Context, calendarID, existingEventID string, event *CalendarEvent) (string, error)

	// Delete removes the event from the external calendar
	Delete(ctx context.Context, calendarID, eventID string) error
}
