package domain

import "time"

// OutboxAttempt records a single publication attempt for an outbox event.
type OutboxAttempt struct {
	ID            string
	EventID       string
	AttemptNumber int
	Sink          string
	StatusCode    *int
	ResponseBody  *string
	Error         *string
	CreatedAt     time.Time
}
