package handler

// fakes_test.go holds the in-memory store implementations the handler
// tests run against. Each fake honors the same error contract as its
// MySQL counterpart: sql.ErrNoRows for missing rows and the shared
// sentinels for duplicates and in-transaction state conflicts.

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/team-workspace/internal/model"
	"github.com/iliyamo/team-workspace/internal/queue"
	"github.com/iliyamo/team-workspace/internal/repository"
)

// ----- users -----

type fakeUsers struct {
	mu   sync.Mutex
	byID map[string]model.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[string]model.User{}} }

// seed inserts a user directly, filling the fields a handler expects
// to find populated.
func (f *fakeUsers) seed(u model.User) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
		u.UpdatedAt = u.CreatedAt
	}
	f.byID[u.ID] = u
	return u
}

func (f *fakeUsers) Create(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Login = strings.TrimSpace(u.Login)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range f.byID {
		if other.Login == u.Login {
			return repository.ErrLoginExists
		}
		if other.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	f.byID[u.ID] = *u
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUsers) GetByLogin(ctx context.Context, login string) (model.User, error) {
	return f.find(func(u model.User) bool { return u.Login == strings.TrimSpace(login) })
}

func (f *fakeUsers) GetByLoginOrEmail(ctx context.Context, ident string) (model.User, error) {
	ident = strings.TrimSpace(ident)
	lower := strings.ToLower(ident)
	return f.find(func(u model.User) bool { return u.Login == ident || u.Email == lower })
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	lower := strings.ToLower(strings.TrimSpace(email))
	return f.find(func(u model.User) bool { return u.Email == lower })
}

func (f *fakeUsers) find(match func(model.User) bool) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (f *fakeUsers) LoginTaken(ctx context.Context, login string) (bool, error) {
	_, err := f.GetByLogin(ctx, login)
	return err == nil, nil
}

func (f *fakeUsers) EmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	return err == nil, nil
}

func (f *fakeUsers) UpdateSettings(ctx context.Context, id string, login, firstName, lastName *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	if login != nil {
		for _, other := range f.byID {
			if other.ID != id && other.Login == *login {
				return repository.ErrLoginExists
			}
		}
		u.Login = *login
	}
	if firstName != nil {
		u.FirstName = *firstName
	}
	if lastName != nil {
		u.LastName = *lastName
	}
	u.UpdatedAt = time.Now().UTC()
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) UpdateEmail(ctx context.Context, id, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	for _, other := range f.byID {
		if other.ID != id && other.Email == email {
			return repository.ErrEmailExists
		}
	}
	u.Email = email
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, id, hash string) error {
	return f.mutate(id, func(u *model.User) { u.PasswordHash = hash })
}

func (f *fakeUsers) UpdateStatus(ctx context.Context, id string, status int8) error {
	return f.mutate(id, func(u *model.User) { u.StatusID = status })
}

func (f *fakeUsers) UpdateAppearance(ctx context.Context, id string, themeIsLight *bool, mainColorHex *string) error {
	return f.mutate(id, func(u *model.User) {
		if themeIsLight != nil {
			u.ThemeIsLight = *themeIsLight
		}
		if mainColorHex != nil {
			u.MainColorHex = mainColorHex
		}
	})
}

func (f *fakeUsers) TouchLogin(ctx context.Context, id, ip string) error {
	now := time.Now().UTC()
	return f.mutate(id, func(u *model.User) {
		u.LastLoginIP = &ip
		u.LastLoginAt = &now
	})
}

func (f *fakeUsers) mutate(id string, apply func(*model.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	apply(&u)
	f.byID[id] = u
	return nil
}

// ----- refresh tokens -----

type fakeTokens struct {
	mu       sync.Mutex
	byUser   map[string]model.RefreshToken
	replaces int
}

func newFakeTokens() *fakeTokens { return &fakeTokens{byUser: map[string]model.RefreshToken{}} }

func (f *fakeTokens) Replace(ctx context.Context, userID, value string, ttlSec int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces++
	f.byUser[userID] = model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Value:     value,
		TTLSec:    ttlSec,
		IsAlive:   true,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (f *fakeTokens) GetActive(ctx context.Context, userID string) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byUser[userID]
	if !ok || !t.IsAlive {
		return model.RefreshToken{}, sql.ErrNoRows
	}
	if t.Expired(time.Now().UTC()) {
		delete(f.byUser, userID)
		return model.RefreshToken{}, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeTokens) DeleteForUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byUser, userID)
	return nil
}

func (f *fakeTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byUser)
}

// ----- verification codes -----

type fakeCodes struct {
	mu     sync.Mutex
	window time.Duration
	seq    int
	byUser map[string]model.VerificationCode
}

func newFakeCodes() *fakeCodes {
	return &fakeCodes{window: 15 * time.Minute, byUser: map[string]model.VerificationCode{}}
}

func (f *fakeCodes) IssueUnique(ctx context.Context, userID string, pendingEmail *string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	code := fmt.Sprintf("C%05d", f.seq)
	f.byUser[userID] = model.VerificationCode{
		ID:           uuid.NewString(),
		UserID:       userID,
		PendingEmail: pendingEmail,
		Code:         code,
		CreatedAt:    time.Now().UTC(),
	}
	return code, nil
}

// age rewinds the stored code's creation time, pushing it toward or
// past the validity window.
func (f *fakeCodes) age(userID string, by time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.byUser[userID]
	row.CreatedAt = row.CreatedAt.Add(-by)
	f.byUser[userID] = row
}

func (f *fakeCodes) Lookup(ctx context.Context, userID, code string) (model.VerificationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.byUser[userID]
	if !ok || row.Code != code || row.Expired(time.Now().UTC(), f.window) {
		return model.VerificationCode{}, sql.ErrNoRows
	}
	return row, nil
}

func (f *fakeCodes) LookupByCode(ctx context.Context, code string) (model.VerificationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.byUser {
		if row.Code == code && !row.Expired(time.Now().UTC(), f.window) {
			return row, nil
		}
	}
	return model.VerificationCode{}, sql.ErrNoRows
}

func (f *fakeCodes) DeleteForUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byUser, userID)
	return nil
}

// ----- teams -----

type fakeTeams struct {
	mu      sync.Mutex
	users   *fakeUsers
	order   []string
	teams   map[string]model.Team
	members map[string]map[string]int // team id -> user id -> role
}

func newFakeTeams(users *fakeUsers) *fakeTeams {
	return &fakeTeams{users: users, teams: map[string]model.Team{}, members: map[string]map[string]int{}}
}

func (f *fakeTeams) CreateWithOwner(ctx context.Context, title, ownerID string) (model.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	t := model.Team{ID: uuid.NewString(), Title: title, StatusID: 1, CreatedAt: now, UpdatedAt: now}
	f.order = append(f.order, t.ID)
	f.teams[t.ID] = t
	f.members[t.ID] = map[string]int{ownerID: model.RoleOwner}
	return t, nil
}

func (f *fakeTeams) login(userID string) string {
	if f.users != nil {
		if u, err := f.users.GetByID(context.Background(), userID); err == nil {
			return u.Login
		}
	}
	return userID
}

func (f *fakeTeams) Get(ctx context.Context, teamID string) (repository.TeamDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return repository.TeamDetail{}, sql.ErrNoRows
	}
	d := repository.TeamDetail{
		ID:        t.ID,
		Title:     t.Title,
		StatusID:  t.StatusID,
		Users:     make([]repository.TeamMemberRow, 0, len(f.members[teamID])),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
	for uid, role := range f.members[teamID] {
		d.Users = append(d.Users, repository.TeamMemberRow{UserID: uid, Login: f.login(uid), RoleID: role})
	}
	sort.Slice(d.Users, func(i, j int) bool {
		if d.Users[i].RoleID != d.Users[j].RoleID {
			return d.Users[i].RoleID > d.Users[j].RoleID
		}
		return d.Users[i].Login < d.Users[j].Login
	})
	return d, nil
}

func (f *fakeTeams) Update(ctx context.Context, teamID, title string, statusID int8, members []model.TeamMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return sql.ErrNoRows
	}
	fresh := map[string]int{}
	for _, m := range members {
		if _, dup := fresh[m.UserID]; dup {
			return repository.ErrConflict
		}
		if f.users != nil {
			if _, err := f.users.GetByID(ctx, m.UserID); err != nil {
				return repository.ErrConflict
			}
		}
		fresh[m.UserID] = m.Role
	}
	t.Title = title
	t.StatusID = statusID
	t.UpdatedAt = time.Now().UTC()
	f.teams[teamID] = t
	f.members[teamID] = fresh
	return nil
}

func (f *fakeTeams) UpdateTitle(ctx context.Context, teamID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[teamID]
	if !ok {
		return sql.ErrNoRows
	}
	t.Title = title
	f.teams[teamID] = t
	return nil
}

func (f *fakeTeams) Delete(ctx context.Context, teamID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.teams[teamID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.teams, teamID)
	delete(f.members, teamID)
	return nil
}

func (f *fakeTeams) ListForUser(ctx context.Context, userID string) ([]repository.TeamSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.TeamSummary, 0, 4)
	for _, id := range f.order {
		role, ok := f.members[id][userID]
		if !ok {
			continue
		}
		t := f.teams[id]
		out = append(out, repository.TeamSummary{
			TeamID:        t.ID,
			Title:         t.Title,
			StatusID:      t.StatusID,
			AmountOfUsers: len(f.members[id]),
			MyRoleID:      role,
			CreatedAt:     t.CreatedAt.Format(time.RFC3339),
			UpdatedAt:     t.UpdatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

func (f *fakeTeams) GetMemberRole(ctx context.Context, teamID, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.members[teamID][userID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return role, nil
}

func (f *fakeTeams) UpdateMemberRole(ctx context.Context, teamID, userID string, role int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[teamID][userID]; !ok {
		return sql.ErrNoRows
	}
	f.members[teamID][userID] = role
	return nil
}

func (f *fakeTeams) PromoteOwner(ctx context.Context, teamID, newOwnerID, prevOwnerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[teamID][newOwnerID]; !ok {
		return sql.ErrNoRows
	}
	f.members[teamID][newOwnerID] = model.RoleOwner
	if _, ok := f.members[teamID][prevOwnerID]; ok {
		f.members[teamID][prevOwnerID] = model.RoleAdmin
	}
	return nil
}

func (f *fakeTeams) RemoveMember(ctx context.Context, teamID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[teamID][userID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.members[teamID], userID)
	return nil
}

// roleOf reads a member's role directly, bypassing the store API.
func (f *fakeTeams) roleOf(teamID, userID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.members[teamID][userID]
	return role, ok
}

// ownersOf counts members holding the owner role.
func (f *fakeTeams) ownersOf(teamID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, role := range f.members[teamID] {
		if role == model.RoleOwner {
			n++
		}
	}
	return n
}

// ----- invitations -----

type fakeInvites struct {
	mu    sync.Mutex
	teams *fakeTeams
	byID  map[string]model.Invitation
}

func newFakeInvites(teams *fakeTeams) *fakeInvites {
	return &fakeInvites{teams: teams, byID: map[string]model.Invitation{}}
}

func (f *fakeInvites) Create(ctx context.Context, teamID string, role int, invitedBy string, ttlSec int64) (model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	inv := model.Invitation{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		Role:      role,
		InvitedBy: invitedBy,
		IsActive:  true,
		TTLSec:    ttlSec,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.byID[inv.ID] = inv
	return inv, nil
}

func (f *fakeInvites) GetByID(ctx context.Context, id string) (model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.byID[id]
	if !ok {
		return model.Invitation{}, sql.ErrNoRows
	}
	return inv, nil
}

func (f *fakeInvites) ListByTeam(ctx context.Context, teamID string) ([]repository.InvitationRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.InvitationRow, 0, 4)
	for _, inv := range f.byID {
		if inv.TeamID != teamID {
			continue
		}
		out = append(out, toInvitationPayload(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (f *fakeInvites) Toggle(ctx context.Context, id string) (model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.byID[id]
	if !ok {
		return model.Invitation{}, sql.ErrNoRows
	}
	inv.IsActive = !inv.IsActive
	f.byID[id] = inv
	return inv, nil
}

func (f *fakeInvites) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeInvites) Accept(ctx context.Context, invitationID, userID string) (model.Invitation, error) {
	f.mu.Lock()
	inv, ok := f.byID[invitationID]
	f.mu.Unlock()
	if !ok {
		return model.Invitation{}, sql.ErrNoRows
	}
	if !inv.IsActive || inv.Expired(time.Now().UTC()) {
		return model.Invitation{}, repository.ErrForbidden
	}
	if _, member := f.teams.roleOf(inv.TeamID, userID); member {
		return model.Invitation{}, repository.ErrConflict
	}
	f.teams.mu.Lock()
	if f.teams.members[inv.TeamID] == nil {
		f.teams.members[inv.TeamID] = map[string]int{}
	}
	f.teams.members[inv.TeamID][userID] = inv.Role
	f.teams.mu.Unlock()

	f.mu.Lock()
	inv.UsersAccepted++
	f.byID[invitationID] = inv
	f.mu.Unlock()
	return inv, nil
}

// age rewinds an invitation's creation time.
func (f *fakeInvites) age(id string, by time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv := f.byID[id]
	inv.CreatedAt = inv.CreatedAt.Add(-by)
	f.byID[id] = inv
}

// ----- mail capture -----

// mailRecorder stands in for the queue publisher; queued events land
// on a buffered channel so tests can wait for the fire-and-forget
// goroutine.
type mailRecorder struct{ ch chan queue.EmailEvent }

func newMailRecorder() *mailRecorder {
	return &mailRecorder{ch: make(chan queue.EmailEvent, 8)}
}

func (m *mailRecorder) send(ctx context.Context, url string, ev queue.EmailEvent) error {
	m.ch <- ev
	return nil
}

func (m *mailRecorder) wait(t *testing.T) queue.EmailEvent {
	t.Helper()
	select {
	case ev := <-m.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("expected a queued mail, got none")
		return queue.EmailEvent{}
	}
}

func (m *mailRecorder) quiet(t *testing.T) {
	t.Helper()
	select {
	case ev := <-m.ch:
		t.Fatalf("expected no mail, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
