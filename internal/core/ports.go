package core

import (
	"context"
	"time"
)

// MailClient defines the interface for the remote mail service
type MailClient interface {
	// ListMessageRefs returns the identifiers of all inbox messages received
	// since the given date, exhausting every result page before returning
	ListMessageRefs(ctx context.Context, since time.Time) ([]string, error)

	// FetchMessage retrieves the full message for a reference
	FetchMessage(ctx context.Context, ref string) (*Message, error)

	// DeleteMessage permanently deletes a message
	DeleteMessage(ctx context.Context, ref string) error

	// MarkAsSpam moves a message out of the inbox into spam
	MarkAsSpam(ctx context.Context, ref string) error
}

// AuditRepository defines the interface for recording applied mutations.
// The sweep pipeline only ever writes to it; idempotency is derived from the
// policy watermark alone.
type AuditRepository interface {
	// Record stores an audit entry
	Record(ctx context.Context, entry *AuditEntry) error

	// Cleanup removes entries past their retention window
	Cleanup(ctx context.Context) error
}
