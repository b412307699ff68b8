package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/team-workspace/internal/model"
)

// TeamStore describes team and membership persistence. Multi-step
// writes (create with owner, wholesale update, cascading delete, owner
// promotion) each run inside a single transaction.
type TeamStore interface {
    CreateWithOwner(ctx context.Context, title, ownerID string) (model.Team, error)
    Get(ctx context.Context, teamID string) (TeamDetail, error)
    Update(ctx context.Context, teamID, title string, statusID int8, members []model.TeamMember) error
    UpdateTitle(ctx context.Context, teamID, title string) error
    Delete(ctx context.Context, teamID string) error
    ListForUser(ctx context.Context, userID string) ([]TeamSummary, error)
    GetMemberRole(ctx context.Context, teamID, userID string) (int, error)
    UpdateMemberRole(ctx context.Context, teamID, userID string, role int) error
    PromoteOwner(ctx context.Context, teamID, newOwnerID, prevOwnerID string) error
    RemoveMember(ctx context.Context, teamID, userID string) error
}

// TeamMemberRow is one entry of a team's member list as returned to
// clients.
type TeamMemberRow struct {
    UserID string `json:"user_id"`
    Login  string `json:"login"`
    RoleID int    `json:"role_id"`
}

// TeamDetail is a team together with its member list, shaped for the
// team detail response.
type TeamDetail struct {
    ID        string          `json:"id"`
    Title     string          `json:"title"`
    StatusID  int8            `json:"status_id"`
    Users     []TeamMemberRow `json:"users"`
    CreatedAt string          `json:"created_at"`
    UpdatedAt string          `json:"updated_at"`
}

// TeamSummary is one row of a user's team listing, including the
// member count and the caller's own role.
type TeamSummary struct {
    TeamID        string `json:"team_id"`
    Title         string `json:"title"`
    StatusID      int8   `json:"status_id"`
    AmountOfUsers int    `json:"amount_of_users"`
    MyRoleID      int    `json:"my_role_id"`
    CreatedAt     string `json:"created_at"`
    UpdatedAt     string `json:"updated_at"`
}

// TeamRepo persists teams and team memberships.
type TeamRepo struct {
    db *sql.DB
}

func NewTeamRepo(db *sql.DB) *TeamRepo { return &TeamRepo{db: db} }

// CreateWithOwner inserts the team and the creator's owner membership
// in one transaction, then reloads the team row so DB-generated
// timestamps are filled in.
func (r *TeamRepo) CreateWithOwner(ctx context.Context, title, ownerID string) (model.Team, error) {
    var t model.Team
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return t, err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        } else {
            _ = tx.Commit()
        }
    }()
    id := uuid.NewString()
    if _, err = tx.ExecContext(ctx,
        `INSERT INTO teams (id, title, status_id) VALUES (?, ?, 1)`, id, title); err != nil {
        return t, err
    }
    if _, err = tx.ExecContext(ctx,
        `INSERT INTO team_members (id, team_id, user_id, role) VALUES (?, ?, ?, ?)`,
        uuid.NewString(), id, ownerID, model.RoleOwner); err != nil {
        return t, err
    }
    err = tx.QueryRowContext(ctx,
        `SELECT id, title, status_id, created_at, updated_at FROM teams WHERE id = ?`, id).
        Scan(&t.ID, &t.Title, &t.StatusID, &t.CreatedAt, &t.UpdatedAt)
    if err != nil {
        return model.Team{}, err
    }
    return t, nil
}

// Get returns the team fields plus the member list joined with user
// logins, owner first. A missing team surfaces as sql.ErrNoRows.
func (r *TeamRepo) Get(ctx context.Context, teamID string) (TeamDetail, error) {
    var (
        d       TeamDetail
        created time.Time
        updated time.Time
    )
    err := r.db.QueryRowContext(ctx,
        `SELECT id, title, status_id, created_at, updated_at FROM teams WHERE id = ? LIMIT 1`, teamID).
        Scan(&d.ID, &d.Title, &d.StatusID, &created, &updated)
    if err != nil {
        return TeamDetail{}, err
    }
    d.CreatedAt = created.Format(time.RFC3339)
    d.UpdatedAt = updated.Format(time.RFC3339)

    const q = `SELECT tm.user_id, u.login, tm.role
               FROM team_members tm
               JOIN users u ON u.id = tm.user_id
               WHERE tm.team_id = ?
               ORDER BY tm.role DESC, u.login ASC`
    rows, err := r.db.QueryContext(ctx, q, teamID)
    if err != nil {
        return TeamDetail{}, err
    }
    defer rows.Close()
    d.Users = make([]TeamMemberRow, 0, 8)
    for rows.Next() {
        var m TeamMemberRow
        if err := rows.Scan(&m.UserID, &m.Login, &m.RoleID); err != nil {
            return TeamDetail{}, err
        }
        d.Users = append(d.Users, m)
    }
    if err := rows.Err(); err != nil {
        return TeamDetail{}, err
    }
    return d, nil
}

// Update replaces the team's title and status and wholesale-replaces
// its member list (delete all, re-insert) in one transaction. A member
// entry referencing an unknown user or listed twice comes back as
// ErrConflict. A missing team surfaces as sql.ErrNoRows.
func (r *TeamRepo) Update(ctx context.Context, teamID, title string, statusID int8, members []model.TeamMember) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        } else {
            _ = tx.Commit()
        }
    }()
    // Verify the team exists before touching memberships.
    var one int
    if err = tx.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id = ? LIMIT 1`, teamID).Scan(&one); err != nil {
        return err
    }
    if _, err = tx.ExecContext(ctx,
        `UPDATE teams SET title = ?, status_id = ? WHERE id = ?`, title, statusID, teamID); err != nil {
        return err
    }
    if _, err = tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, teamID); err != nil {
        return err
    }
    if len(members) > 0 {
        query := `INSERT INTO team_members (id, team_id, user_id, role) VALUES `
        args := make([]interface{}, 0, len(members)*4)
        for i, m := range members {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?)"
            args = append(args, uuid.NewString(), teamID, m.UserID, m.Role)
        }
        if _, err = tx.ExecContext(ctx, query, args...); err != nil {
            // 1452: member references a user that does not exist.
            // 1062: the same user was listed twice.
            msg := err.Error()
            if strings.Contains(msg, "1452") || strings.Contains(msg, "1062") {
                err = ErrConflict
            }
            return err
        }
    }
    return nil
}

// UpdateTitle changes only the team title (the settings endpoint).
func (r *TeamRepo) UpdateTitle(ctx context.Context, teamID, title string) error {
    res, err := r.db.ExecContext(ctx, `UPDATE teams SET title = ? WHERE id = ?`, title, teamID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        // Distinguish "no such team" from "title unchanged".
        var one int
        if scanErr := r.db.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id = ? LIMIT 1`, teamID).Scan(&one); scanErr != nil {
            return scanErr
        }
    }
    return nil
}

// Delete removes the team together with its invitations and
// memberships in one transaction. A missing team surfaces as
// sql.ErrNoRows.
func (r *TeamRepo) Delete(ctx context.Context, teamID string) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        } else {
            _ = tx.Commit()
        }
    }()
    var one int
    if err = tx.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id = ? LIMIT 1`, teamID).Scan(&one); err != nil {
        return err
    }
    if _, err = tx.ExecContext(ctx, `DELETE FROM invitations WHERE team_id = ?`, teamID); err != nil {
        return err
    }
    if _, err = tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, teamID); err != nil {
        return err
    }
    if _, err = tx.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, teamID); err != nil {
        return err
    }
    return nil
}

// ListForUser returns every team the user belongs to, with the member
// count and the user's own role in each.
func (r *TeamRepo) ListForUser(ctx context.Context, userID string) ([]TeamSummary, error) {
    const q = `SELECT t.id, t.title, t.status_id,
                      (SELECT COUNT(*) FROM team_members c WHERE c.team_id = t.id) AS amount_of_users,
                      tm.role, t.created_at, t.updated_at
               FROM teams t
               JOIN team_members tm ON tm.team_id = t.id AND tm.user_id = ?
               ORDER BY t.created_at ASC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]TeamSummary, 0, 8)
    for rows.Next() {
        var (
            s       TeamSummary
            created time.Time
            updated time.Time
        )
        if err := rows.Scan(&s.TeamID, &s.Title, &s.StatusID, &s.AmountOfUsers, &s.MyRoleID, &created, &updated); err != nil {
            return nil, err
        }
        s.CreatedAt = created.Format(time.RFC3339)
        s.UpdatedAt = updated.Format(time.RFC3339)
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// GetMemberRole returns the user's role in the team; sql.ErrNoRows
// means the user is not a member.
func (r *TeamRepo) GetMemberRole(ctx context.Context, teamID, userID string) (int, error) {
    var role int
    err := r.db.QueryRowContext(ctx,
        `SELECT role FROM team_members WHERE team_id = ? AND user_id = ? LIMIT 1`, teamID, userID).
        Scan(&role)
    return role, err
}

// UpdateMemberRole sets a member's role. Callers check membership and
// permission rules first, so no affected-rows check is needed here.
func (r *TeamRepo) UpdateMemberRole(ctx context.Context, teamID, userID string, role int) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE team_members SET role = ? WHERE team_id = ? AND user_id = ?`, role, teamID, userID)
    return err
}

// PromoteOwner hands team ownership to newOwnerID and demotes the
// previous owner to admin in the same transaction, so the team never
// has two owners or none. A missing new owner surfaces as
// sql.ErrNoRows.
func (r *TeamRepo) PromoteOwner(ctx context.Context, teamID, newOwnerID, prevOwnerID string) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        } else {
            _ = tx.Commit()
        }
    }()
    var res sql.Result
    res, err = tx.ExecContext(ctx,
        `UPDATE team_members SET role = ? WHERE team_id = ? AND user_id = ?`,
        model.RoleOwner, teamID, newOwnerID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        err = sql.ErrNoRows
        return err
    }
    if _, err = tx.ExecContext(ctx,
        `UPDATE team_members SET role = ? WHERE team_id = ? AND user_id = ?`,
        model.RoleAdmin, teamID, prevOwnerID); err != nil {
        return err
    }
    return nil
}

// RemoveMember deletes the membership row. A missing member surfaces
// as sql.ErrNoRows.
func (r *TeamRepo) RemoveMember(ctx context.Context, teamID, userID string) error {
    res, err := r.db.ExecContext(ctx,
        `DELETE FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return sql.ErrNoRows
    }
    return nil
}
