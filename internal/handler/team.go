package handler

import (
    "context"
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/team-workspace/internal/middleware"
    "github.com/iliyamo/team-workspace/internal/model"
    "github.com/iliyamo/team-workspace/internal/repository"
)

// TeamHandler serves team CRUD and membership management. Every route
// sits behind the session middleware, so a user record is always in
// context.
type TeamHandler struct {
    Teams repository.TeamStore
}

func NewTeamHandler(teams repository.TeamStore) *TeamHandler {
    return &TeamHandler{Teams: teams}
}

// ----- DTOs -----

type createTeamReq struct {
    Title string `json:"title" validate:"required,min=1,max=100"`
}

type memberSpec struct {
    UserID string `json:"user_id" validate:"required"`
    RoleID int    `json:"role_id" validate:"gte=0,lte=3"`
}

type updateTeamReq struct {
    TeamID   string       `json:"team_id" validate:"required"`
    Title    string       `json:"title" validate:"required,min=1,max=100"`
    StatusID int8         `json:"status_id"`
    Users    []memberSpec `json:"users" validate:"required,min=1,dive"`
}

type teamSettingsReq struct {
    Title string `json:"title" validate:"required,min=1,max=100"`
}

type memberRoleReq struct {
    RoleID int `json:"role_id" validate:"gte=0,lte=3"`
}

// Create opens a new team with the caller as its owner.
func (h *TeamHandler) Create(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    var req createTeamReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    t, err := h.Teams.CreateWithOwner(ctx, req.Title, cur.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create team failed"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"team_id": t.ID})
}

// Get returns a team with its member list. Any authenticated user may
// look a team up; membership is not required.
func (h *TeamHandler) Get(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    d, err := h.Teams.Get(ctx, c.Param("id"))
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "Team not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    return c.JSON(http.StatusOK, d)
}

// Update replaces the team's title, status and entire member list.
// Only admins and the owner may call it.
func (h *TeamHandler) Update(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    var req updateTeamReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    role, err := h.Teams.GetMemberRole(ctx, req.TeamID, cur.ID)
    if err != nil || role < model.RoleAdmin {
        if err != nil && err != sql.ErrNoRows {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
        }
        return c.JSON(http.StatusForbidden, echo.Map{"error": "Permission denied"})
    }

    // The submitted list may hold at most one owner; a second one
    // would break the single-owner rule the storage layer maintains.
    owners := 0
    members := make([]model.TeamMember, 0, len(req.Users))
    for _, m := range req.Users {
        if !model.ValidRole(m.RoleID) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid member list"})
        }
        if m.RoleID == model.RoleOwner {
            owners++
        }
        members = append(members, model.TeamMember{TeamID: req.TeamID, UserID: m.UserID, Role: m.RoleID})
    }
    if owners > 1 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid member list"})
    }

    if err := h.Teams.Update(ctx, req.TeamID, req.Title, req.StatusID, members); err != nil {
        switch {
        case err == sql.ErrNoRows:
            return c.JSON(http.StatusNotFound, echo.Map{"error": "Team not found"})
        case err == repository.ErrConflict:
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid member list"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update team failed"})
        }
    }
    d, err := h.Teams.Get(ctx, req.TeamID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    return c.JSON(http.StatusOK, d)
}

// Delete removes a team with all its memberships and invitations.
// Owner only.
func (h *TeamHandler) Delete(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    teamID := c.Param("id")

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    role, err := h.Teams.GetMemberRole(ctx, teamID, cur.ID)
    if err != nil || role != model.RoleOwner {
        if err != nil && err != sql.ErrNoRows {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
        }
        return c.JSON(http.StatusForbidden, echo.Map{"error": "Permission denied"})
    }
    if err := h.Teams.Delete(ctx, teamID); err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "Team not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete team failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Team deleted successfully"})
}

// List returns every team the caller belongs to.
func (h *TeamHandler) List(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    teams, err := h.Teams.ListForUser(ctx, cur.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    return c.JSON(http.StatusOK, teams)
}

// UpdateSettings changes the team title. Admins and the owner only.
func (h *TeamHandler) UpdateSettings(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    teamID := c.Param("id")
    var req teamSettingsReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    role, err := h.Teams.GetMemberRole(ctx, teamID, cur.ID)
    if err != nil || role < model.RoleAdmin {
        if err != nil && err != sql.ErrNoRows {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
        }
        return c.JSON(http.StatusForbidden, echo.Map{"error": "You do not have permission to edit team settings."})
    }
    if err := h.Teams.UpdateTitle(ctx, teamID, req.Title); err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "Team not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update team failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Team settings updated successfully"})
}

// UpdateMemberRole changes another member's role. Granting ownership
// swaps the owner: the target takes role 3 and the caller drops to
// admin in the same transaction.
func (h *TeamHandler) UpdateMemberRole(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    teamID := c.Param("id")
    targetID := c.Param("uid")
    var req memberRoleReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    callerRole, err := h.Teams.GetMemberRole(ctx, teamID, cur.ID)
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusForbidden, echo.Map{"error": "User is not a member of this team."})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if targetID == cur.ID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "You cannot change your own role."})
    }
    targetRole, err := h.Teams.GetMemberRole(ctx, teamID, targetID)
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found in this team."})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if !model.CanManageMember(callerRole, targetRole) || !model.CanGrantRole(callerRole, req.RoleID) {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "Permission denied"})
    }

    if req.RoleID == model.RoleOwner {
        err = h.Teams.PromoteOwner(ctx, teamID, targetID, cur.ID)
    } else {
        err = h.Teams.UpdateMemberRole(ctx, teamID, targetID, req.RoleID)
    }
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found in this team."})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update role failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "User role updated successfully"})
}

// RemoveMember kicks another member off the team.
func (h *TeamHandler) RemoveMember(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    teamID := c.Param("id")
    targetID := c.Param("uid")

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    callerRole, err := h.Teams.GetMemberRole(ctx, teamID, cur.ID)
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusForbidden, echo.Map{"error": "User is not a member of this team."})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if targetID == cur.ID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "You cannot remove yourself from this team."})
    }
    targetRole, err := h.Teams.GetMemberRole(ctx, teamID, targetID)
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found in this team."})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if !model.CanManageMember(callerRole, targetRole) {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "Permission denied"})
    }
    if err := h.Teams.RemoveMember(ctx, teamID, targetID); err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found in this team."})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove member failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "User removed from team successfully"})
}
