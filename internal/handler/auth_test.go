package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/team-workspace/internal/model"
	"github.com/iliyamo/team-workspace/internal/utils"
)

func newAuthFixture() (*AuthHandler, *fakeUsers, *fakeTokens) {
	cfg := testConfig()
	users := newFakeUsers()
	tokens := newFakeTokens()
	return NewAuthHandler(cfg, utils.NewTokenCodec(cfg.JWTSecret), users, tokens), users, tokens
}

const registerBody = `{"login":"alice","email":"alice@example.com","password":"s3cret-enough","first_name":"Alice","last_name":"Smith"}`

func TestRegister(t *testing.T) {
	e := testEcho()
	h, users, tokens := newAuthFixture()

	rec := invoke(t, e, http.MethodPost, "/api/v1/user", registerBody, nil, nil, h.Register)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := jsonBody(t, rec)
	assert.Equal(t, "alice", body["login"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, float64(model.StatusUnverified), body["status_id"])
	assert.Equal(t, true, body["theme_is_light"])
	assert.NotEmpty(t, body["id"])
	assert.NotContains(t, rec.Body.String(), "password", "payload must not leak credentials")

	// The session starts immediately: access cookie on the response,
	// refresh row in the store.
	token := accessCookie(rec)
	require.NotEmpty(t, token)
	sub, err := h.Codec.Decode(token, true)
	require.NoError(t, err)
	assert.Equal(t, body["id"], sub)
	assert.Equal(t, 1, tokens.count())

	stored, err := users.GetByLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, "s3cret-enough"))
}

func TestRegisterDuplicates(t *testing.T) {
	e := testEcho()
	h, users, _ := newAuthFixture()
	users.seed(model.User{Login: "alice", Email: "alice@example.com"})

	rec := invoke(t, e, http.MethodPost, "/api/v1/user", registerBody, nil, nil, h.Register)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "User with this login already exists")

	dupEmail := `{"login":"someone-else","email":"alice@example.com","password":"s3cret-enough","first_name":"A","last_name":"B"}`
	rec = invoke(t, e, http.MethodPost, "/api/v1/user", dupEmail, nil, nil, h.Register)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "User with this email already exists")
}

func TestRegisterValidation(t *testing.T) {
	e := testEcho()
	h, _, _ := newAuthFixture()

	rec := invoke(t, e, http.MethodPost, "/api/v1/user",
		`{"login":"al","email":"not-an-email","password":"short","first_name":"","last_name":""}`,
		nil, nil, h.Register)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := jsonBody(t, rec)
	assert.Equal(t, "Validation Error", body["detail"])
	errs, ok := body["errors"].([]interface{})
	require.True(t, ok)
	fields := map[string]bool{}
	for _, item := range errs {
		m := item.(map[string]interface{})
		fields[m["field"].(string)] = true
		assert.NotEmpty(t, m["msg"])
		assert.NotEmpty(t, m["type"])
	}
	assert.True(t, fields["login"])
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
}

func TestLogin(t *testing.T) {
	e := testEcho()
	h, users, tokens := newAuthFixture()

	hash, err := utils.HashPassword("s3cret-enough", 4)
	require.NoError(t, err)
	users.seed(model.User{Login: "alice", Email: "alice@example.com", PasswordHash: hash, StatusID: model.StatusVerified})

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{"by login", `{"login":"alice","password":"s3cret-enough"}`, http.StatusOK, "Login successful"},
		{"by email", `{"login":"alice@example.com","password":"s3cret-enough"}`, http.StatusOK, "Login successful"},
		{"wrong password", `{"login":"alice","password":"wrong-password"}`, http.StatusUnauthorized, "Invalid credentials"},
		{"unknown identifier", `{"login":"nobody","password":"s3cret-enough"}`, http.StatusUnauthorized, "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := invoke(t, e, http.MethodPost, "/api/v1/user/auth", tt.body, nil, nil, h.Login)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			if tt.wantCode == http.StatusOK {
				assert.NotEmpty(t, accessCookie(rec))
			} else {
				assert.Empty(t, accessCookie(rec))
			}
		})
	}

	// Two successful logins above: still exactly one live refresh row.
	assert.Equal(t, 1, tokens.count())

	stored, err := users.GetByLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt, "login must stamp last_login_at")
	assert.NotNil(t, stored.LastLoginIP)
}

func TestRefreshRowStaysSingleAcrossLogins(t *testing.T) {
	e := testEcho()
	h, users, tokens := newAuthFixture()

	hash, err := utils.HashPassword("s3cret-enough", 4)
	require.NoError(t, err)
	users.seed(model.User{Login: "alice", Email: "alice@example.com", PasswordHash: hash})

	for i := 0; i < 5; i++ {
		rec := invoke(t, e, http.MethodPost, "/api/v1/user/auth",
			`{"login":"alice","password":"s3cret-enough"}`, nil, nil, h.Login)
		require.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("login %d", i))
	}
	assert.Equal(t, 1, tokens.count())
	assert.Equal(t, 5, tokens.replaces)
}
