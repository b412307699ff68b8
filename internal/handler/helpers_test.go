package handler

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/team-workspace/internal/config"
	"github.com/iliyamo/team-workspace/internal/middleware"
	"github.com/iliyamo/team-workspace/internal/model"
)

// testEcho returns an echo instance with the payload validator the
// real server installs.
func testEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "handler-test-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 180,
		BcryptCost:     4,
		SwaggerCookie:  true,
	}
}

// invoke runs a single handler against a synthetic request. user seeds
// the session context the way the resolver would; params seeds route
// parameters.
func invoke(t *testing.T, e *echo.Echo, method, path, body string, user *model.User, params map[string]string, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		names := make([]string, 0, len(params))
		values := make([]string, 0, len(params))
		for k, v := range params {
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if user != nil {
		middleware.SetCurrentUser(c, *user)
	}
	require.NoError(t, h(c))
	return rec
}

// jsonBody decodes the recorded response into a generic map.
func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

// accessCookie digs the access token out of a recorded response.
func accessCookie(rec *httptest.ResponseRecorder) string {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.AccessCookie {
			return ck.Value
		}
	}
	return ""
}
