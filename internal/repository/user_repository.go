package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/team-workspace/internal/model"
)

// UserStore describes the user persistence operations consumed by
// handlers and middleware. *UserRepo is the MySQL implementation;
// tests substitute in-memory fakes.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByLogin(ctx context.Context, login string) (model.User, error)
	GetByLoginOrEmail(ctx context.Context, ident string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	LoginTaken(ctx context.Context, login string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UpdateSettings(ctx context.Context, id string, login, firstName, lastName *string) error
	UpdateEmail(ctx context.Context, id, email string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateStatus(ctx context.Context, id string, status int8) error
	UpdateAppearance(ctx context.Context, id string, themeIsLight *bool, mainColorHex *string) error
	TouchLogin(ctx context.Context, id, ip string) error
}

// UserRepo persists rows of the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var (
	// ErrLoginExists reports a violation of the unique login index.
	ErrLoginExists = errors.New("login already exists")
	// ErrEmailExists reports a violation of the unique email index.
	ErrEmailExists = errors.New("email already exists")
)

const userColumns = "id, login, email, password_hash, status_id, first_name, last_name, theme_is_light, main_color_hex, last_login_ip, last_login_at, created_at, updated_at"

// dupUserErr maps MySQL duplicate-key failures (error 1062) onto the
// login/email sentinels by inspecting the violated index name. Any
// other error is returned unchanged.
func dupUserErr(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return err
	}
	if i := strings.Index(msg, "for key"); i >= 0 && strings.Contains(msg[i:], "login") {
		return ErrLoginExists
	}
	return ErrEmailExists
}

// Create inserts a user and reloads the row so DB-generated timestamps
// are filled in. The ID is generated here, the email is normalized to
// lower case first.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.ID = uuid.NewString()
	u.Login = strings.TrimSpace(u.Login)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, login, email, password_hash, status_id, first_name, last_name, theme_is_light) VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Login, u.Email, u.PasswordHash, u.StatusID, u.FirstName, u.LastName, u.ThemeIsLight)
	if err != nil {
		return dupUserErr(err)
	}
	created, err := r.getWhere(ctx, "id=?", u.ID)
	if err != nil {
		return err
	}
	*u = created
	return nil
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.getWhere(ctx, "id=?", id)
}

// GetByLogin fetches a user by login name.
func (r *UserRepo) GetByLogin(ctx context.Context, login string) (model.User, error) {
	return r.getWhere(ctx, "login=?", login)
}

// GetByLoginOrEmail fetches a user by either identifier; the login
// form is the identifier the client typed, used as-is for the login
// column and lower-cased for the email column.
func (r *UserRepo) GetByLoginOrEmail(ctx context.Context, ident string) (model.User, error) {
	ident = strings.TrimSpace(ident)
	return r.getWhere(ctx, "login=? OR email=?", ident, strings.ToLower(ident))
}

// GetByEmail fetches a user by normalized email address.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getWhere(ctx, "email=?", strings.ToLower(strings.TrimSpace(email)))
}

// LoginTaken reports whether any user already holds the given login.
func (r *UserRepo) LoginTaken(ctx context.Context, login string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE login=? LIMIT 1", strings.TrimSpace(login)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EmailTaken reports whether any user already holds the given email.
func (r *UserRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE email=? LIMIT 1", strings.ToLower(strings.TrimSpace(email))).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateSettings applies a partial profile update; only non-nil fields
// are written. Passing nothing is a no-op. A duplicate login surfaces
// as ErrLoginExists.
func (r *UserRepo) UpdateSettings(ctx context.Context, id string, login, firstName, lastName *string) error {
	set := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if login != nil {
		set = append(set, "login=?")
		args = append(args, strings.TrimSpace(*login))
	}
	if firstName != nil {
		set = append(set, "first_name=?")
		args = append(args, *firstName)
	}
	if lastName != nil {
		set = append(set, "last_name=?")
		args = append(args, *lastName)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(set, ", ")+" WHERE id=?", args...)
	if err != nil {
		return dupUserErr(err)
	}
	return nil
}

// UpdateEmail replaces the stored email after a confirmed change. A
// duplicate surfaces as ErrEmailExists.
func (r *UserRepo) UpdateEmail(ctx context.Context, id, email string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email=? WHERE id=?", strings.ToLower(strings.TrimSpace(email)), id)
	if err != nil {
		return dupUserErr(err)
	}
	return nil
}

// UpdatePassword stores a new bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return err
}

// UpdateStatus moves the account between unverified/verified/banned.
func (r *UserRepo) UpdateStatus(ctx context.Context, id string, status int8) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET status_id=? WHERE id=?", status, id)
	return err
}

// UpdateAppearance applies a partial theme update; only non-nil fields
// are written.
func (r *UserRepo) UpdateAppearance(ctx context.Context, id string, themeIsLight *bool, mainColorHex *string) error {
	set := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if themeIsLight != nil {
		set = append(set, "theme_is_light=?")
		args = append(args, *themeIsLight)
	}
	if mainColorHex != nil {
		set = append(set, "main_color_hex=?")
		args = append(args, *mainColorHex)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(set, ", ")+" WHERE id=?", args...)
	return err
}

// TouchLogin records the source address and time of a successful login.
func (r *UserRepo) TouchLogin(ctx context.Context, id, ip string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login_ip=?, last_login_at=UTC_TIMESTAMP() WHERE id=?", ip, id)
	return err
}

// getWhere runs the shared SELECT with an arbitrary condition. The
// nullable columns go through sql.Null* intermediates so absent values
// come back as nil pointers.
func (r *UserRepo) getWhere(ctx context.Context, cond string, args ...interface{}) (model.User, error) {
	var (
		u        model.User
		colorHex sql.NullString
		loginIP  sql.NullString
		loginAt  sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+cond+" LIMIT 1", args...).
		Scan(&u.ID, &u.Login, &u.Email, &u.PasswordHash, &u.StatusID, &u.FirstName, &u.LastName,
			&u.ThemeIsLight, &colorHex, &loginIP, &loginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if colorHex.Valid {
		u.MainColorHex = &colorHex.String
	}
	if loginIP.Valid {
		u.LastLoginIP = &loginIP.String
	}
	if loginAt.Valid {
		u.LastLoginAt = &loginAt.Time
	}
	return u, nil
}
