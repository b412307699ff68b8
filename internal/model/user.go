package model

import "time"

// Account status values stored in users.status_id. The zero value is
// deliberately "unverified": a freshly inserted row starts there and
// moves to verified once the email code is confirmed. Banned is a
// terminal administrative state.
const (
    StatusBanned     int8 = -1
    StatusUnverified int8 = 0
    StatusVerified   int8 = 1
)

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are used by the repository layer; handlers define separate
// response types with appropriate JSON tags.
//
// Fields:
//  ID           - primary key, UUIDv4 string.
//  Login        - unique login name.
//  Email        - unique email address.
//  PasswordHash - bcrypt hashed password.
//  StatusID     - account status (see Status* constants).
//  FirstName    - given name.
//  LastName     - family name.
//  ThemeIsLight - UI theme preference.
//  MainColorHex - UI accent colour, nil when the user never set one.
//  LastLoginIP  - remote address of the most recent login (nullable).
//  LastLoginAt  - time of the most recent login (nullable).
//  CreatedAt    - timestamp of creation.
//  UpdatedAt    - timestamp of last update.
type User struct {
    ID           string     // users.id
    Login        string     // users.login
    Email        string     // users.email
    PasswordHash string     // users.password_hash
    StatusID     int8       // users.status_id
    FirstName    string     // users.first_name
    LastName     string     // users.last_name
    ThemeIsLight bool       // users.theme_is_light
    MainColorHex *string    // users.main_color_hex (nullable)
    LastLoginIP  *string    // users.last_login_ip (nullable)
    LastLoginAt  *time.Time // users.last_login_at (nullable)
    CreatedAt    time.Time  // users.created_at
    UpdatedAt    time.Time  // users.updated_at
}

// Banned reports whether the account is administratively blocked.
func (u User) Banned() bool { return u.StatusID == StatusBanned }

// Verified reports whether the account confirmed its email address.
func (u User) Verified() bool { return u.StatusID == StatusVerified }
