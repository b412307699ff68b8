package middleware

// identity.go defines the request-context plumbing shared across middleware
// and handlers: the context keys the session resolver populates, the
// CurrentUser accessor, and the cookie builder used everywhere an access
// token is handed to the client.

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/team-workspace/internal/config"
    "github.com/iliyamo/team-workspace/internal/model"
)

// AccessCookie is the name of the cookie carrying the access JWT.
const AccessCookie = "access_token"

// userKey holds the resolved user record; userIDKey mirrors just the ID
// for consumers that only need that (rate-limit key building).
const (
    userKey   = "current_user"
    userIDKey = "user_id"
)

// CurrentUser returns the user the session resolver stored on the
// context. ok is false on routes that never went through the resolver.
func CurrentUser(c echo.Context) (model.User, bool) {
    u, ok := c.Get(userKey).(model.User)
    return u, ok
}

// SetCurrentUser stores the resolved user on the request context. The
// session resolver is the only production caller; tests use it to
// exercise handlers without a real session.
func SetCurrentUser(c echo.Context, u model.User) {
    c.Set(userKey, u)
    c.Set(userIDKey, u.ID)
}

// SessionCookie builds the access-token cookie. Max-Age spans the
// refresh window rather than the access TTL: the cookie has to outlive
// the short access JWT or the browser would drop it before the
// transparent renewal path ever runs. With SwaggerCookie set the
// Secure/SameSite attributes stay relaxed so swagger-ui over plain
// http keeps working.
func SessionCookie(cfg config.Config, token string) *http.Cookie {
    ck := &http.Cookie{
        Name:     AccessCookie,
        Value:    token,
        Path:     "/",
        MaxAge:   cfg.RefreshTTLDays * 24 * 60 * 60,
        HttpOnly: true,
    }
    if cfg.SwaggerCookie {
        ck.SameSite = http.SameSiteLaxMode
        return ck
    }
    ck.Secure = cfg.CookieSecure
    switch strings.ToLower(cfg.CookieSameSite) {
    case "strict":
        ck.SameSite = http.SameSiteStrictMode
    case "none":
        ck.SameSite = http.SameSiteNoneMode
    default:
        ck.SameSite = http.SameSiteLaxMode
    }
    return ck
}
