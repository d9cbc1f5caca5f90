// Package queue defines message payloads exchanged over the message broker.
package queue

// PasswordResetMailEvent is published when a reset code has been issued
// for an account. The mail relay consumes it and delivers the code; the
// auth flow never waits on delivery and never retries it.
type PasswordResetMailEvent struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	ExpiresAt   string `json:"expires_at"`
	RequestedAt string `json:"requested_at"`
}
