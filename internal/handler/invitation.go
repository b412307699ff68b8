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

// InvitationHandler serves the invitation lifecycle: issue, accept,
// list, toggle, delete. Issuing is owner-only; managing takes admin or
// owner; accepting only takes a session.
type InvitationHandler struct {
	Invites repository.InvitationStore
	Teams   repository.TeamStore
}

func NewInvitationHandler(invites repository.InvitationStore, teams repository.TeamStore) *InvitationHandler {
	return &InvitationHandler{Invites: invites, Teams: teams}
}

// ----- DTOs -----

type createInvitationReq struct {
	TeamID string `json:"team_id" validate:"required"`
	RoleID int    `json:"role_id" validate:"gte=0,lte=3"`
	TTLSec int64  `json:"ttl_sec" validate:"required,gt=0"`
}

func toInvitationPayload(inv model.Invitation) repository.InvitationRow {
	return repository.InvitationRow{
		ID:            inv.ID,
		TeamID:        inv.TeamID,
		RoleID:        inv.Role,
		InvitedBy:     inv.InvitedBy,
		IsActive:      inv.IsActive,
		UsersAccepted: inv.UsersAccepted,
		TTLSec:        inv.TTLSec,
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     inv.UpdatedAt.Format(time.RFC3339),
	}
}

// memberRole loads the caller's role in a team and writes the 403
// responses shared by the management endpoints. The bool reports
// whether the request may proceed.
func (h *InvitationHandler) memberRole(c echo.Context, ctx context.Context, teamID, userID string, floor int) (int, bool) {
	role, err := h.Teams.GetMemberRole(ctx, teamID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			_ = c.JSON(http.StatusForbidden, echo.Map{"error": "User is not a member of this team."})
		} else {
			_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		return 0, false
	}
	if role < floor {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "Permission denied"})
		return 0, false
	}
	return role, true
}

// Create issues a reusable invitation for a team. Owner only.
func (h *InvitationHandler) Create(c echo.Context) error {
	cur, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
	}
	var req createInvitationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return validationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, err := h.Teams.GetMemberRole(ctx, req.TeamID, cur.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "User is not a member of this team."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if role != model.RoleOwner {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "User does not have permission to invite others."})
	}

	inv, err := h.Invites.Create(ctx, req.TeamID, req.RoleID, cur.ID, req.TTLSec)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create invitation failed"})
	}
	return c.JSON(http.StatusCreated, toInvitationPayload(inv))
}

// Accept joins the caller to the invitation's team. The checks run in
// a fixed order: existence, expiry, active flag, membership; the
// storage layer repeats the state checks inside the accept transaction
// to close the race with a concurrent toggle.
func (h *InvitationHandler) Accept(c echo.Context) error {
	cur, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
	}
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Invites.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Invitation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	// Expiry outranks the active flag: a stale invitation reports
	// expired even when still switched on.
	if inv.Expired(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invitation has expired"})
	}
	if !inv.IsActive {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invitation is not active"})
	}
	if _, err := h.Teams.GetMemberRole(ctx, inv.TeamID, cur.ID); err == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "User is already a member of this team."})
	} else if err != sql.ErrNoRows {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	got, err := h.Invites.Accept(ctx, id, cur.ID)
	switch {
	case err == sql.ErrNoRows:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invitation not found"})
	case err == repository.ErrForbidden:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invitation is not active"})
	case err == repository.ErrConflict:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "User is already a member of this team."})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "accept invitation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":        "Invitation accepted successfully",
		"team_id":        got.TeamID,
		"role_id":        got.Role,
		"users_accepted": got.UsersAccepted,
	})
}

// List returns a team's invitations. Admins and the owner only.
func (h *InvitationHandler) List(c echo.Context) error {
	cur, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
	}
	teamID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, ok := h.memberRole(c, ctx, teamID, cur.ID, model.RoleAdmin); !ok {
		return nil
	}
	out, err := h.Invites.ListByTeam(ctx, teamID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, out)
}

// Toggle flips an invitation's active flag. Admins and the owner of
// the invitation's team only.
func (h *InvitationHandler) Toggle(c echo.Context) error {
	cur, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
	}
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Invites.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Invitation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if _, ok := h.memberRole(c, ctx, inv.TeamID, cur.ID, model.RoleAdmin); !ok {
		return nil
	}
	toggled, err := h.Invites.Toggle(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Invitation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "toggle invitation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "Invitation toggled successfully",
		"is_active": toggled.IsActive,
	})
}

// Delete removes an invitation. Admins and the owner of the
// invitation's team only.
func (h *InvitationHandler) Delete(c echo.Context) error {
	cur, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
	}
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Invites.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Invitation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if _, ok := h.memberRole(c, ctx, inv.TeamID, cur.ID, model.RoleAdmin); !ok {
		return nil
	}
	if err := h.Invites.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Invitation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete invitation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Invitation deleted successfully"})
}
