package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/team-workspace/internal/model"
	"github.com/iliyamo/team-workspace/internal/utils"
)

// VerificationCodeStore describes short-lived verification code
// persistence: one row per user, overwritten on every issue, valid for
// a fixed window from created_at.
type VerificationCodeStore interface {
	IssueUnique(ctx context.Context, userID string, pendingEmail *string) (string, error)
	Lookup(ctx context.Context, userID, code string) (model.VerificationCode, error)
	LookupByCode(ctx context.Context, code string) (model.VerificationCode, error)
	DeleteForUser(ctx context.Context, userID string) error
}

// ErrCodeCollision is returned when issueAttempts consecutive random
// codes were already held by unexpired rows. With a 36^6 code space
// this effectively never happens; the bound exists so issuance cannot
// loop forever.
var ErrCodeCollision = errors.New("could not allocate a unique code")

// issueAttempts caps the generate-and-check loop in IssueUnique.
const issueAttempts = 5

// CodeRepo persists verification codes. Window is the validity
// duration measured from created_at, Length the number of characters
// in a generated code.
type CodeRepo struct {
	DB     *sql.DB
	Window time.Duration
	Length int
}

func NewCodeRepo(db *sql.DB, window time.Duration, length int) *CodeRepo {
	return &CodeRepo{DB: db, Window: window, Length: length}
}

// IssueUnique generates a code that no unexpired row currently holds
// and upserts it for the user, restarting the validity window. Codes
// must be unique among live rows because password reset locates the
// user by code alone. pendingEmail is non-nil only for the
// email-change flow and names the address being claimed.
func (r *CodeRepo) IssueUnique(ctx context.Context, userID string, pendingEmail *string) (string, error) {
	for i := 0; i < issueAttempts; i++ {
		code, err := utils.GenerateCode(r.Length)
		if err != nil {
			return "", err
		}
		taken, err := r.codeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		_, err = r.DB.ExecContext(ctx,
			`INSERT INTO verification_codes (id, user_id, email, code)
			 VALUES (?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE email=VALUES(email), code=VALUES(code), created_at=UTC_TIMESTAMP()`,
			uuid.NewString(), userID, pendingEmail, code)
		if err != nil {
			return "", err
		}
		return code, nil
	}
	return "", ErrCodeCollision
}

// Lookup returns the user's code row when the code matches and the
// window has not elapsed. A wrong code and an expired one both come
// back as sql.ErrNoRows; callers cannot tell them apart.
func (r *CodeRepo) Lookup(ctx context.Context, userID, code string) (model.VerificationCode, error) {
	return r.lookupWhere(ctx, "user_id=? AND code=?", userID, code)
}

// LookupByCode is the password-reset variant: it locates the row (and
// through it the user) by code alone, within the validity window.
func (r *CodeRepo) LookupByCode(ctx context.Context, code string) (model.VerificationCode, error) {
	return r.lookupWhere(ctx, "code=?", code)
}

// DeleteForUser consumes the user's code after a successful
// confirmation.
func (r *CodeRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM verification_codes WHERE user_id=?", userID)
	return err
}

// codeInUse reports whether any unexpired row holds the code.
func (r *CodeRepo) codeInUse(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM verification_codes WHERE code=? AND created_at > DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? SECOND) LIMIT 1",
		code, int64(r.Window.Seconds())).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *CodeRepo) lookupWhere(ctx context.Context, cond string, args ...interface{}) (model.VerificationCode, error) {
	var (
		c     model.VerificationCode
		email sql.NullString
	)
	query := "SELECT id, user_id, email, code, created_at, updated_at FROM verification_codes WHERE " + cond +
		" AND created_at > DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? SECOND) LIMIT 1"
	args = append(args, int64(r.Window.Seconds()))
	err := r.DB.QueryRowContext(ctx, query, args...).
		Scan(&c.ID, &c.UserID, &email, &c.Code, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return model.VerificationCode{}, err
	}
	if email.Valid {
		c.PendingEmail = &email.String
	}
	return c, nil
}
