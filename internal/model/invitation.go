package model

import "time"

// Invitation is a reusable, time-boxed offer to join a team at a
// fixed role. It stays acceptable while IsActive is true and the TTL
// window has not elapsed; expiry is evaluated at acceptance time by
// wall-clock comparison, rows are never reaped automatically.
//
// Fields:
//  ID            - primary key, UUIDv4 string; doubles as the invite link token.
//  TeamID        - team the invitation joins.
//  Role          - role granted on acceptance.
//  InvitedBy     - user who issued the invitation.
//  IsActive      - manual on/off switch, toggled by admins.
//  UsersAccepted - how many distinct users accepted so far.
//  TTLSec        - lifetime of the offer in seconds from CreatedAt.
//  CreatedAt     - creation timestamp.
//  UpdatedAt     - last update timestamp.
type Invitation struct {
    ID            string    // invitations.id
    TeamID        string    // invitations.team_id
    Role          int       // invitations.role
    InvitedBy     string    // invitations.invited_by
    IsActive      bool      // invitations.is_active
    UsersAccepted int       // invitations.users_accepted
    TTLSec        int64     // invitations.ttl_sec
    CreatedAt     time.Time // invitations.created_at
    UpdatedAt     time.Time // invitations.updated_at
}

// ExpiresAt returns the instant the invitation stops being acceptable.
func (i Invitation) ExpiresAt() time.Time {
    return i.CreatedAt.Add(time.Duration(i.TTLSec) * time.Second)
}

// Expired reports whether the TTL window has elapsed at now. The
// active flag is checked separately so an expired invitation reports
// expiry even while toggled off.
func (i Invitation) Expired(now time.Time) bool {
    return now.After(i.ExpiresAt())
}
