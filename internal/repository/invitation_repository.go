package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/team-workspace/internal/model"
)

// InvitationStore describes invitation persistence. Invitations are
// reusable join offers: acceptance adds a membership and bumps the
// acceptance counter atomically.
type InvitationStore interface {
    Create(ctx context.Context, teamID string, role int, invitedBy string, ttlSec int64) (model.Invitation, error)
    GetByID(ctx context.Context, id string) (model.Invitation, error)
    ListByTeam(ctx context.Context, teamID string) ([]InvitationRow, error)
    Toggle(ctx context.Context, id string) (model.Invitation, error)
    Delete(ctx context.Context, id string) error
    Accept(ctx context.Context, invitationID, userID string) (model.Invitation, error)
}

// InvitationRow is one entry of a team's invitation listing.
type InvitationRow struct {
    ID            string `json:"id"`
    TeamID        string `json:"team_id"`
    RoleID        int    `json:"role_id"`
    InvitedBy     string `json:"invited_by"`
    IsActive      bool   `json:"is_active"`
    UsersAccepted int    `json:"users_accepted"`
    TTLSec        int64  `json:"ttl_sec"`
    CreatedAt     string `json:"created_at"`
    UpdatedAt     string `json:"updated_at"`
}

// InvitationRepo persists invitations.
type InvitationRepo struct {
    db *sql.DB
}

func NewInvitationRepo(db *sql.DB) *InvitationRepo { return &InvitationRepo{db: db} }

const invitationColumns = "id, team_id, role, invited_by, is_active, users_accepted, ttl_sec, created_at, updated_at"

// Create inserts an invitation and reloads it so DB-generated
// timestamps are filled in.
func (r *InvitationRepo) Create(ctx context.Context, teamID string, role int, invitedBy string, ttlSec int64) (model.Invitation, error) {
    id := uuid.NewString()
    _, err := r.db.ExecContext(ctx,
        `INSERT INTO invitations (id, team_id, role, invited_by, ttl_sec) VALUES (?, ?, ?, ?, ?)`,
        id, teamID, role, invitedBy, ttlSec)
    if err != nil {
        return model.Invitation{}, err
    }
    return r.GetByID(ctx, id)
}

// GetByID fetches an invitation by primary key.
func (r *InvitationRepo) GetByID(ctx context.Context, id string) (model.Invitation, error) {
    row := r.db.QueryRowContext(ctx,
        "SELECT "+invitationColumns+" FROM invitations WHERE id = ? LIMIT 1", id)
    return scanInvitation(row)
}

// ListByTeam returns all invitations of a team, newest first.
func (r *InvitationRepo) ListByTeam(ctx context.Context, teamID string) ([]InvitationRow, error) {
    rows, err := r.db.QueryContext(ctx,
        "SELECT "+invitationColumns+" FROM invitations WHERE team_id = ? ORDER BY created_at DESC", teamID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]InvitationRow, 0, 8)
    for rows.Next() {
        var (
            v       InvitationRow
            created time.Time
            updated time.Time
        )
        if err := rows.Scan(&v.ID, &v.TeamID, &v.RoleID, &v.InvitedBy, &v.IsActive,
            &v.UsersAccepted, &v.TTLSec, &created, &updated); err != nil {
            return nil, err
        }
        v.CreatedAt = created.Format(time.RFC3339)
        v.UpdatedAt = updated.Format(time.RFC3339)
        out = append(out, v)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// Toggle flips the active flag and returns the updated invitation. A
// missing invitation surfaces as sql.ErrNoRows.
func (r *InvitationRepo) Toggle(ctx context.Context, id string) (model.Invitation, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE invitations SET is_active = NOT is_active WHERE id = ?`, id)
    if err != nil {
        return model.Invitation{}, err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return model.Invitation{}, sql.ErrNoRows
    }
    return r.GetByID(ctx, id)
}

// Delete removes an invitation outright. A missing invitation
// surfaces as sql.ErrNoRows.
func (r *InvitationRepo) Delete(ctx context.Context, id string) error {
    res, err := r.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = ?`, id)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return sql.ErrNoRows
    }
    return nil
}

// Accept joins the user to the invitation's team at the granted role
// and increments users_accepted, all in one transaction. The
// invitation row is locked and re-checked inside the transaction, so
// a concurrent toggle or expiry between the handler's checks and the
// join cannot slip through; that race surfaces as ErrForbidden. A
// concurrent double-accept is stopped by the unique (team_id, user_id)
// key and surfaces as ErrConflict.
func (r *InvitationRepo) Accept(ctx context.Context, invitationID, userID string) (model.Invitation, error) {
    var inv model.Invitation
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return inv, err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        }
    }()
    row := tx.QueryRowContext(ctx,
        "SELECT "+invitationColumns+" FROM invitations WHERE id = ? LIMIT 1 FOR UPDATE", invitationID)
    inv, err = scanInvitation(row)
    if err != nil {
        return model.Invitation{}, err
    }
    if !inv.IsActive || inv.Expired(time.Now().UTC()) {
        err = ErrForbidden
        return model.Invitation{}, err
    }
    if _, err = tx.ExecContext(ctx,
        `INSERT INTO team_members (id, team_id, user_id, role) VALUES (?, ?, ?, ?)`,
        uuid.NewString(), inv.TeamID, userID, inv.Role); err != nil {
        if strings.Contains(err.Error(), "1062") {
            err = ErrConflict
        }
        return model.Invitation{}, err
    }
    if _, err = tx.ExecContext(ctx,
        `UPDATE invitations SET users_accepted = users_accepted + 1 WHERE id = ?`, invitationID); err != nil {
        return model.Invitation{}, err
    }
    if err = tx.Commit(); err != nil {
        return model.Invitation{}, err
    }
    inv.UsersAccepted++
    return inv, nil
}

func scanInvitation(row *sql.Row) (model.Invitation, error) {
    var inv model.Invitation
    err := row.Scan(&inv.ID, &inv.TeamID, &inv.Role, &inv.InvitedBy, &inv.IsActive,
        &inv.UsersAccepted, &inv.TTLSec, &inv.CreatedAt, &inv.UpdatedAt)
    if err != nil {
        return model.Invitation{}, err
    }
    return inv, nil
}
