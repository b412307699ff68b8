package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table. The
// value column holds the signed JWT handed out at login; at most one
// live row exists per user, replaced wholesale whenever a new session
// is issued. Expiry is derived from CreatedAt + TTLSec at read time
// and never extended in place.
//
// Fields:
//  ID        - primary key, UUIDv4 string.
//  UserID    - owner of the token, unique across live rows.
//  Value     - signed refresh JWT as given to the client.
//  TTLSec    - lifetime in seconds from CreatedAt.
//  IsAlive   - liveness flag; dead rows are ignored by lookups.
//  CreatedAt - timestamp of creation.
//  UpdatedAt - timestamp of last update.
type RefreshToken struct {
    ID        string    // refresh_tokens.id
    UserID    string    // refresh_tokens.user_id
    Value     string    // refresh_tokens.value
    TTLSec    int64     // refresh_tokens.ttl_sec
    IsAlive   bool      // refresh_tokens.is_alive
    CreatedAt time.Time // refresh_tokens.created_at
    UpdatedAt time.Time // refresh_tokens.updated_at
}

// ExpiresAt returns the wall-clock instant the token stops working.
func (t RefreshToken) ExpiresAt() time.Time {
    return t.CreatedAt.Add(time.Duration(t.TTLSec) * time.Second)
}

// Expired reports whether the token's TTL has elapsed at now.
func (t RefreshToken) Expired(now time.Time) bool {
    return now.After(t.ExpiresAt())
}

// VerificationCode is a single-use, short-lived proof of email
// ownership stored in the `verification_codes` table. One row exists
// per user; issuing a new code overwrites it. PendingEmail is set
// only for the email-change flow and names the address the code was
// mailed to. The validity window is a fixed duration from CreatedAt
// supplied by configuration, not a stored column.
type VerificationCode struct {
    ID           string    // verification_codes.id
    UserID       string    // verification_codes.user_id
    PendingEmail *string   // verification_codes.email (nullable)
    Code         string    // verification_codes.code
    CreatedAt    time.Time // verification_codes.created_at
    UpdatedAt    time.Time // verification_codes.updated_at
}

// Expired reports whether the code left its validity window at now.
func (c VerificationCode) Expired(now time.Time, window time.Duration) bool {
    return now.After(c.CreatedAt.Add(window))
}
