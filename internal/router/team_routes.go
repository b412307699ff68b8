package router

// This file registers the team and invitation routes.  They are kept
// separate from the account routes to keep concerns isolated: every
// route here requires a verified session, and per-team authorization
// (member, admin, owner) is enforced inside the handlers where the
// team id is known.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/team-workspace/internal/handler"
)

// RegisterTeam registers team CRUD, membership management and the
// invitation lifecycle under /api/v1. The session middleware supplies
// the caller's user record; role checks happen in the handlers.
func RegisterTeam(e *echo.Echo, t *handler.TeamHandler, i *handler.InvitationHandler, session echo.MiddlewareFunc) {
    g := e.Group("/api/v1", session)

    // ---- Teams ----
    g.POST("/team", t.Create)
    g.GET("/team/:id", t.Get)
    g.PUT("/team", t.Update)
    g.DELETE("/team/:id", t.Delete)
    g.PUT("/team/:id/settings", t.UpdateSettings)
    g.GET("/teams", t.List)

    // ---- Members ----
    g.PUT("/team/:id/user/:uid", t.UpdateMemberRole)
    g.DELETE("/team/:id/user/:uid", t.RemoveMember)

    // ---- Invitations ----
    // Accepting is a plain GET so an invitation link can be opened
    // directly from a mail client.
    g.POST("/team/invitation", i.Create)
    g.GET("/team/invitation/:id", i.Accept)
    g.GET("/team/:id/invitations", i.List)
    g.PUT("/team/invitation/:id/toggle", i.Toggle)
    g.DELETE("/team/invitation/:id/delete", i.Delete)
}
