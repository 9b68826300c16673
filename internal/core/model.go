package core

import (
	"time"
)

// Header is a single message header line
type Header struct {
	Name  string
	Value string
}

// Message is a fetched mail message reduced to what classification needs.
// Headers is nil when the upstream payload carried no header collection at all,
// which is distinct from an empty header list.
type Message struct {
	Ref     string
	Headers []Header
}

// Action is the mutation applied to a message whose recipients are blocked
type Action string

const (
	// ActionDelete permanently deletes the message
	ActionDelete Action = "delete"
	// ActionSpam removes the inbox label and applies the spam label instead
	ActionSpam Action = "spam"
)

// CycleStats summarizes one sweep cycle
type CycleStats struct {
	Found     int
	Processed int
	Swept     int
	Skipped   int
}

// AuditEntry records one applied mutation
type AuditEntry struct {
	MessageRef string
	Recipients []string
	Action     Action
	SweptAt    time.Time
	ExpiresAt  time.Time
}
