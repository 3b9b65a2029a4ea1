package jobstore

import "github.com/google/uuid"

// NewJobID generates a new job id.
func NewJobID() string {
	return uuid.NewString()
}

// NewOutboxID generates a new webhook_outbox id.
func NewOutboxID() string {
	return uuid.NewString()
}
