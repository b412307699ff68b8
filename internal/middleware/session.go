package middleware

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/team-workspace/internal/config"
    "github.com/iliyamo/team-workspace/internal/repository"
    "github.com/iliyamo/team-workspace/internal/utils"
)

// Session returns the authentication middleware guarding every
// protected route. It resolves the access_token cookie into a full user
// record on the context, transparently renewing an expired access token
// from the stored refresh token, and gates on account status.
// requireVerified is false only for the verification routes, which an
// unverified account must still be able to reach.
//
// Resolution walks these states:
//
//	no cookie            -> 401 "No access token provided"
//	bad signature/claims -> 401 "Invalid token"
//	valid, unexpired     -> subject accepted
//	valid but expired    -> refresh lookup; dead or absent
//	                        -> 401 "Refresh token not found or expired";
//	                        otherwise a fresh access token is minted, set
//	                        on the response cookie, and the request
//	                        continues without a client retry
//	unknown subject      -> 401 "User not found"
//	banned account       -> 403 "User is banned"
//	unverified account   -> 403 "User is not verified" (unless exempt)
func Session(cfg config.Config, codec *utils.TokenCodec, users repository.UserStore, tokens repository.RefreshTokenStore, requireVerified bool) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            cookie, err := c.Cookie(AccessCookie)
            if err != nil || cookie.Value == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "No access token provided"})
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()

            userID, err := codec.Decode(cookie.Value, true)
            if errors.Is(err, utils.ErrTokenExpired) {
                // Renewal path: the signature checked out, only the
                // clock ran out. Re-read the subject ignoring expiry
                // and consult the stored refresh token.
                userID, err = codec.Decode(cookie.Value, false)
                if err != nil {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid token"})
                }
                if _, err = tokens.GetActive(ctx, userID); err != nil {
                    if errors.Is(err, sql.ErrNoRows) {
                        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Refresh token not found or expired"})
                    }
                    c.Logger().Errorf("session: refresh lookup: %v", err)
                    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session lookup failed"})
                }
                fresh, err := codec.Issue(userID, time.Duration(cfg.AccessTTLMin)*time.Minute)
                if err != nil {
                    c.Logger().Errorf("session: token issue: %v", err)
                    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session lookup failed"})
                }
                c.SetCookie(SessionCookie(cfg, fresh))
            } else if err != nil {
                // Malformed token, wrong signature or unusable claims.
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid token"})
            }

            u, err := users.GetByID(ctx, userID)
            if err != nil {
                if errors.Is(err, sql.ErrNoRows) {
                    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
                }
                c.Logger().Errorf("session: user lookup: %v", err)
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session lookup failed"})
            }
            if u.Banned() {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "User is banned"})
            }
            if requireVerified && !u.Verified() {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "User is not verified"})
            }

            SetCurrentUser(c, u)
            return next(c)
        }
    }
}
