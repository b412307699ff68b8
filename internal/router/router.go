package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/team-workspace/internal/handler" // handlers implement the business logic behind each route
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/api/health" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/api/health", handler.Health)
}

// RegisterUser registers every account-related route under /api/v1.
//
// Three tiers share the prefix: fully public endpoints (registration,
// login, password reset), session-only endpoints that stay reachable
// for unverified accounts (the verify flow itself), and the regular
// protected endpoints. The two middleware arguments are the session
// resolver in its strict and verify-exempt forms.
func RegisterUser(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler, session, sessionLoose echo.MiddlewareFunc) {
	v1 := e.Group("/api/v1")

	// Public: no cookie needed. Registration and login set one;
	// password reset identifies the account by emailed code alone.
	v1.POST("/user", a.Register)
	v1.POST("/user/auth", a.Login)
	v1.POST("/user/password/reset/send", u.SendResetCode)
	v1.POST("/user/password/reset", u.ResetPassword)

	// Verify-exempt: a session is required but the account may still
	// be unverified, otherwise nobody could ever request or confirm
	// their verification code.
	loose := e.Group("/api/v1", sessionLoose)
	loose.POST("/user/verify/send", u.SendVerifyCode)
	loose.POST("/user/verify", u.ConfirmVerify)

	// Protected: session plus verified status.
	auth := e.Group("/api/v1", session)
	auth.GET("/user/me", u.Me)
	auth.GET("/user/:id", u.GetByID)
	auth.PATCH("/user/settings", u.UpdateSettings)
	auth.POST("/user/settings/email/confirm", u.ConfirmEmail)
	auth.PATCH("/user/appearance", u.Appearance)
}
