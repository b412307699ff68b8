package handler

import (
    "context"
    "database/sql"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/team-workspace/internal/config"
    "github.com/iliyamo/team-workspace/internal/middleware"
    "github.com/iliyamo/team-workspace/internal/model"
    "github.com/iliyamo/team-workspace/internal/queue"
    "github.com/iliyamo/team-workspace/internal/repository"
    queue_publisher "github.com/iliyamo/team-workspace/internal/service"
    "github.com/iliyamo/team-workspace/internal/utils"
)

// UserHandler bundles dependencies for profile, verification and
// password-reset endpoints. Mailer is the queue publisher; tests
// substitute a capture function.
type UserHandler struct {
    Cfg    config.Config
    Users  repository.UserStore
    Tokens repository.RefreshTokenStore
    Codes  repository.VerificationCodeStore
    Mailer func(ctx context.Context, url string, ev queue.EmailEvent) error
}

func NewUserHandler(cfg config.Config, u repository.UserStore, t repository.RefreshTokenStore, codes repository.VerificationCodeStore) *UserHandler {
    return &UserHandler{Cfg: cfg, Users: u, Tokens: t, Codes: codes, Mailer: queue_publisher.PublishEmail}
}

// queueMail hands the message to the broker without blocking the
// request; delivery failures are logged by the publisher and the
// consumer, never surfaced to the client.
func (h *UserHandler) queueMail(ev queue.EmailEvent) {
    mailer := h.Mailer
    url := h.Cfg.AMQPURL
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = mailer(ctx, url, ev)
    }()
}

// ----- DTOs -----

type userPayload struct {
    ID           string  `json:"id"`
    Login        string  `json:"login"`
    Email        string  `json:"email"`
    StatusID     int8    `json:"status_id"`
    FirstName    string  `json:"first_name"`
    LastName     string  `json:"last_name"`
    ThemeIsLight bool    `json:"theme_is_light"`
    MainColorHex *string `json:"main_color_hex"`
    LastLoginIP  *string `json:"last_login_ip"`
    LastLoginAt  *string `json:"last_login_at"`
    CreatedAt    string  `json:"created_at"`
    UpdatedAt    string  `json:"updated_at"`
}

func toUserPayload(u model.User) userPayload {
    p := userPayload{
        ID:           u.ID,
        Login:        u.Login,
        Email:        u.Email,
        StatusID:     u.StatusID,
        FirstName:    u.FirstName,
        LastName:     u.LastName,
        ThemeIsLight: u.ThemeIsLight,
        MainColorHex: u.MainColorHex,
        LastLoginIP:  u.LastLoginIP,
        CreatedAt:    u.CreatedAt.Format(time.RFC3339),
        UpdatedAt:    u.UpdatedAt.Format(time.RFC3339),
    }
    if u.LastLoginAt != nil {
        s := u.LastLoginAt.Format(time.RFC3339)
        p.LastLoginAt = &s
    }
    return p
}

type settingsReq struct {
    Login     *string `json:"login" validate:"omitempty,min=3,max=50"`
    Email     *string `json:"email" validate:"omitempty,email,max=50"`
    Password  *string `json:"password" validate:"omitempty,min=8,max=128"`
    FirstName *string `json:"first_name" validate:"omitempty,max=50"`
    LastName  *string `json:"last_name" validate:"omitempty,max=50"`
}

type codeReq struct {
    Code string `json:"code" validate:"required"`
}

type resetSendReq struct {
    Email string `json:"email" validate:"required,email"`
}

type resetReq struct {
    Code        string `json:"code" validate:"required"`
    NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type appearanceReq struct {
    ThemeIsLight *bool   `json:"theme_is_light"`
    MainColorHex *string `json:"main_color_hex" validate:"omitempty,max=16"`
}

// Me returns the authenticated user's own profile.
func (h *UserHandler) Me(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    return c.JSON(http.StatusOK, toUserPayload(cur))
}

// GetByID returns another user's profile by id.
func (h *UserHandler) GetByID(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByID(ctx, c.Param("id"))
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    return c.JSON(http.StatusOK, toUserPayload(u))
}

// UpdateSettings applies a partial profile update. A changed email is
// not written directly: a confirmation code is mailed to the new
// address and the change lands only after ConfirmEmail.
func (h *UserHandler) UpdateSettings(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    var req settingsReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if req.Login != nil && strings.TrimSpace(*req.Login) != cur.Login {
        taken, err := h.Users.LoginTaken(ctx, *req.Login)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
        }
        if taken {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "User with this login already exists"})
        }
    } else {
        req.Login = nil
    }

    emailPending := false
    if req.Email != nil {
        email := strings.ToLower(strings.TrimSpace(*req.Email))
        if email != cur.Email {
            taken, err := h.Users.EmailTaken(ctx, email)
            if err != nil {
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
            }
            if taken {
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "User with this email already exists"})
            }
            code, err := h.Codes.IssueUnique(ctx, cur.ID, &email)
            if err != nil {
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue code failed"})
            }
            h.queueMail(queue.VerificationEmail(email, code))
            emailPending = true
        }
    }

    if req.Password != nil {
        hash, err := utils.HashPassword(*req.Password, h.Cfg.BcryptCost)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
        }
        if err := h.Users.UpdatePassword(ctx, cur.ID, hash); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
        }
    }

    if err := h.Users.UpdateSettings(ctx, cur.ID, req.Login, req.FirstName, req.LastName); err != nil {
        if err == repository.ErrLoginExists {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "User with this login already exists"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
    }

    if emailPending {
        return c.JSON(http.StatusOK, echo.Map{"message": "Confirmation code sent to the new email. Update email by confirming the code."})
    }
    updated, err := h.Users.GetByID(ctx, cur.ID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    return c.JSON(http.StatusOK, toUserPayload(updated))
}

// ConfirmEmail finishes an email change: the code mailed to the new
// address proves ownership, then the stored email is swapped.
func (h *UserHandler) ConfirmEmail(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    var req codeReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    row, err := h.Codes.Lookup(ctx, cur.ID, strings.ToUpper(strings.TrimSpace(req.Code)))
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired code"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    // A code without a pending email belongs to the account-verify
    // flow and proves nothing about a new address.
    if row.PendingEmail == nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired code"})
    }
    if err := h.Users.UpdateEmail(ctx, cur.ID, *row.PendingEmail); err != nil {
        if err == repository.ErrEmailExists {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "User with this email already exists"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
    }
    if err := h.Codes.DeleteForUser(ctx, cur.ID); err != nil {
        c.Logger().Warnf("confirm email: consume code: %v", err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Email updated successfully"})
}

// SendVerifyCode mails an account-verification code to the user's own
// address. Reissuing replaces any previous code.
func (h *UserHandler) SendVerifyCode(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    if cur.Verified() {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "User is already verified"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    code, err := h.Codes.IssueUnique(ctx, cur.ID, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue code failed"})
    }
    h.queueMail(queue.VerificationEmail(cur.Email, code))
    return c.JSON(http.StatusOK, echo.Map{"message": "Verification code sent"})
}

// ConfirmVerify upgrades the account to verified when the submitted
// code matches. Wrong and expired codes are indistinguishable.
func (h *UserHandler) ConfirmVerify(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    var req codeReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if _, err := h.Codes.Lookup(ctx, cur.ID, strings.ToUpper(strings.TrimSpace(req.Code))); err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired code"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if err := h.Users.UpdateStatus(ctx, cur.ID, model.StatusVerified); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
    }
    if err := h.Codes.DeleteForUser(ctx, cur.ID); err != nil {
        c.Logger().Warnf("verify: consume code: %v", err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "User verified"})
}

// SendResetCode mails a password-reset code when the address is known.
// The response is 200 either way, so the endpoint cannot be used to
// probe which emails exist.
func (h *UserHandler) SendResetCode(c echo.Context) error {
    var req resetSendReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err == nil {
        code, err := h.Codes.IssueUnique(ctx, u.ID, nil)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue code failed"})
        }
        h.queueMail(queue.PasswordResetEmail(u.Email, code))
    } else if err != sql.ErrNoRows {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Reset password code sent"})
}

// ResetPassword swaps the password for whoever holds a live reset
// code; the code alone identifies the account. The user's refresh
// token is dropped so stolen sessions die with the old password.
func (h *UserHandler) ResetPassword(c echo.Context) error {
    var req resetReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    row, err := h.Codes.LookupByCode(ctx, strings.ToUpper(strings.TrimSpace(req.Code)))
    if err != nil {
        if err == sql.ErrNoRows {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired code"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
    }
    if err := h.Users.UpdatePassword(ctx, row.UserID, hash); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
    }
    if err := h.Codes.DeleteForUser(ctx, row.UserID); err != nil {
        c.Logger().Warnf("reset: consume code: %v", err)
    }
    if err := h.Tokens.DeleteForUser(ctx, row.UserID); err != nil {
        c.Logger().Warnf("reset: revoke refresh: %v", err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successful"})
}

// Appearance stores the user's theme preferences.
func (h *UserHandler) Appearance(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "User not found"})
    }
    var req appearanceReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return validationError(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Users.UpdateAppearance(ctx, cur.ID, req.ThemeIsLight, req.MainColorHex); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "Theme saved"})
}
