package handler

import (
	"context"      // provides context with cancellation for DB calls
	"database/sql" // SQL database interactions
	"net/http"     // HTTP status codes and primitives
	"time"         // timeouts for DB calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/team-workspace/internal/config"     // app configuration
	"github.com/iliyamo/team-workspace/internal/middleware" // session cookie builder
	"github.com/iliyamo/team-workspace/internal/model"      // user entity and status values
	"github.com/iliyamo/team-workspace/internal/repository" // DB repositories
	"github.com/iliyamo/team-workspace/internal/utils"      // helper functions (hashing, token issuing)
)

// AuthHandler bundles dependencies for the register and login endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Codec  *utils.TokenCodec
	Users  repository.UserStore
	Tokens repository.RefreshTokenStore
}

func NewAuthHandler(cfg config.Config, codec *utils.TokenCodec, u repository.UserStore, t repository.RefreshTokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Codec: codec, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Login     string `json:"login" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email,max=50"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"required,max=50"`
}

type loginReq struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register: create the account and start its session immediately. The
// response carries the user payload; the access token travels in the
// cookie and the refresh token stays server-side.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return validationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	u := model.User{
		Login:        req.Login,
		Email:        req.Email,
		PasswordHash: hash,
		StatusID:     model.StatusUnverified,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		ThemeIsLight: true,
	}
	if err := h.Users.Create(ctx, &u); err != nil {
		if err == repository.ErrLoginExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "User with this login already exists"})
		}
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "User with this email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	if err := h.startSession(c, ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusCreated, toUserPayload(u))
}

// Login: verify credentials by login or email and start a session.
// Unknown identifier and wrong password answer identically.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return validationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByLoginOrEmail(ctx, req.Login)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
	}

	if err := h.startSession(c, ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	// Best effort; a failed audit write never blocks the login.
	if err := h.Users.TouchLogin(ctx, u.ID, c.RealIP()); err != nil {
		c.Logger().Warnf("login: touch last_login: %v", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Login successful"})
}

// startSession mints the access and refresh tokens, installs the
// refresh row (replacing any previous one) and sets the access cookie.
func (h *AuthHandler) startSession(c echo.Context, ctx context.Context, userID string) error {
	access, err := h.Codec.Issue(userID, time.Duration(h.Cfg.AccessTTLMin)*time.Minute)
	if err != nil {
		return err
	}
	refreshTTL := time.Duration(h.Cfg.RefreshTTLDays) * 24 * time.Hour
	refresh, err := h.Codec.Issue(userID, refreshTTL)
	if err != nil {
		return err
	}
	if err := h.Tokens.Replace(ctx, userID, refresh, int64(refreshTTL/time.Second)); err != nil {
		return err
	}
	c.SetCookie(middleware.SessionCookie(h.Cfg, access))
	return nil
}
