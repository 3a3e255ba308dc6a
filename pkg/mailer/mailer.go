// Package mailer delivers the out-of-band email notifications the deal
// flow produces.
package mailer

import "context"

// Sender delivers one HTML email. Production wiring enqueues through
// Redis and delivers from the worker; tests substitute a recorder.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
