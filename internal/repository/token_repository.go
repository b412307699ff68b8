package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/team-workspace/internal/model"
)

// RefreshTokenStore describes refresh-token persistence. At most one
// live row exists per user; Replace enforces that through the unique
// user_id index, so two concurrent logins of the same account settle
// into a single surviving token.
type RefreshTokenStore interface {
	Replace(ctx context.Context, userID, value string, ttlSec int64) error
	GetActive(ctx context.Context, userID string) (model.RefreshToken, error)
	DeleteForUser(ctx context.Context, userID string) error
}

// TokenRepo persists refresh tokens (one live row per user).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Replace installs the user's current refresh token, overwriting any
// previous one in a single upsert keyed on the user_id unique index.
// created_at is reset so the TTL window restarts with the new value.
func (r *TokenRepo) Replace(ctx context.Context, userID, value string, ttlSec int64) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, value, ttl_sec, is_alive)
		 VALUES (?, ?, ?, ?, 1)
		 ON DUPLICATE KEY UPDATE value=VALUES(value), ttl_sec=VALUES(ttl_sec), is_alive=1, created_at=UTC_TIMESTAMP()`,
		uuid.NewString(), userID, value, ttlSec)
	return err
}

// GetActive returns the user's live refresh token while it is inside
// its TTL window. An expired row is deleted on the spot and reported
// as sql.ErrNoRows, so callers never see a stale token.
func (r *TokenRepo) GetActive(ctx context.Context, userID string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, value, ttl_sec, is_alive, created_at, updated_at FROM refresh_tokens WHERE user_id=? AND is_alive=1 LIMIT 1",
		userID).Scan(&t.ID, &t.UserID, &t.Value, &t.TTLSec, &t.IsAlive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.RefreshToken{}, err
	}
	if t.Expired(time.Now().UTC()) {
		_, _ = r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE id=?", t.ID)
		return model.RefreshToken{}, sql.ErrNoRows
	}
	return t, nil
}

// DeleteForUser removes the user's refresh token outright, forcing a
// fresh login. Used on password reset.
func (r *TokenRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}
