// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// EmailEvent is published whenever the API wants a mail delivered. It
// carries the complete rendered message so downstream consumers can
// deliver, log or archive it without querying the primary database.
type EmailEvent struct {
    To       string `json:"to"`
    Subject  string `json:"subject"`
    Body     string `json:"body"`
    QueuedAt string `json:"queued_at"`
}

// VerificationEmail renders the message carrying an account or
// email-change verification code.
func VerificationEmail(to, code string) EmailEvent {
    return EmailEvent{
        To:       to,
        Subject:  "Verification Code",
        Body:     "Your verification code is: " + code,
        QueuedAt: time.Now().UTC().Format(time.RFC3339),
    }
}

// PasswordResetEmail renders the message carrying a password reset code.
func PasswordResetEmail(to, code string) EmailEvent {
    return EmailEvent{
        To:       to,
        Subject:  "Password Reset Code",
        Body:     "Your password reset code is: " + code,
        QueuedAt: time.Now().UTC().Format(time.RFC3339),
    }
}
