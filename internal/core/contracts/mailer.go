package contracts

import "context"

// Mailer delivers out-of-band email: generated passwords, account
// reminders, and contact-form relays to the operator.
type Mailer interface {
	SendPassword(ctx context.Context, to, name, password string) error
	SendAccountReminder(ctx context.Context, to, name string) error
	SendContactRelay(ctx context.Context, fromName, fromEmail, subject, body string) error
}
