package model

import "time"

// Team represents a row in the `teams` table. Teams group users
// under a shared workspace; membership and per-member roles live in
// the team_members table.
//
// Fields:
//  ID        - primary key, UUIDv4 string.
//  Title     - display name of the team.
//  StatusID  - numeric team status (1 = active).
//  CreatedAt - creation timestamp.
//  UpdatedAt - last update timestamp.
type Team struct {
    ID        string    // teams.id
    Title     string    // teams.title
    StatusID  int8      // teams.status_id
    CreatedAt time.Time // teams.created_at
    UpdatedAt time.Time // teams.updated_at
}

// TeamMember links a user to a team with a role. At most one link
// exists per (team, user) pair and at most one member per team holds
// RoleOwner at any instant; both are enforced by the storage layer.
//
// Fields:
//  ID     - primary key, UUIDv4 string.
//  TeamID - team the membership belongs to.
//  UserID - member user.
//  Role   - role in the team (see Role* constants).
type TeamMember struct {
    ID     string // team_members.id
    TeamID string // team_members.team_id
    UserID string // team_members.user_id
    Role   int    // team_members.role
}
