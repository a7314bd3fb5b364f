package providers

import "context"

// MessageSender delivers a text message to a channel destination
// (e.g. a WhatsApp phone number).
type MessageSender interface {
	// Send delivers text to the destination and returns the provider message ID
	Send(ctx context.Context, destination, text string) (string, error)
}

// MailSender delivers email reminders
type MailSender interface {
	// Deliver sends an email to the given address
	Deliver(ctx context.Context, to, subject, body string) error
}
