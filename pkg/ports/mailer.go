package ports

import "context"

// Email is a fully rendered MIME message ready for delivery.
type Email struct {
	From    string
	To      []string
	Subject string
	// Raw holds the complete MIME message, headers included.
	Raw []byte
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}
