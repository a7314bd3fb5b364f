package providers

import (
	"context"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
)

// EventChannelAppointments is the channel carrying appointment change events
const EventChannelAppointments = "appointments:events"

// EventBus defines the interface for publishing and subscribing to
// appointment events. Publishing is fire-and-forget from the booking path's
// point of view; a publish failure never fails a booking.
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}
