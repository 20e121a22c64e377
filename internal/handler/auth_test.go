package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertos-pos/bc-bridge/internal/config"
	"github.com/robertos-pos/bc-bridge/internal/middleware"
	"github.com/robertos-pos/bc-bridge/internal/model"
	"github.com/robertos-pos/bc-bridge/internal/utils"
)

func newAuthServer(t *testing.T) (*echo.Echo, config.Config) {
	t.Helper()
	cfg := config.Config{
		JWTSecret:  "test-secret",
		SessionTTL: time.Hour,
		BcryptCost: 4, // keep hashing fast in tests
		Users: []config.UserCred{
			{ID: "u1", Name: "Admin", Username: "admin", Password: "1234", Role: "admin"},
		},
	}
	h := NewAuthHandler(cfg)
	e := echo.New()
	e.POST("/auth/login", h.Login)
	e.GET("/auth/me", h.Me)
	e.POST("/auth/logout", h.Logout)
	return e, cfg
}

func TestLoginSetsCookieAndReturnsToken(t *testing.T) {
	e, cfg := newAuthServer(t)

	rec := doJSON(e, http.MethodPost, "/auth/login", `{"username":"admin","password":"1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	token := body["token"].(string)
	require.NotEmpty(t, token)

	sess, err := utils.ParseSessionToken(cfg.JWTSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UID)
	assert.Equal(t, "Admin", sess.Name)
	assert.Equal(t, "admin", sess.Role)

	user := body["user"].(map[string]any)
	assert.Equal(t, "u1", user["id"])
	_, hasUsername := user["username"]
	assert.False(t, hasUsername, "login response carries no username")

	var sid *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.SessionCookie {
			sid = ck
		}
	}
	require.NotNil(t, sid, "sid cookie must be set")
	assert.Equal(t, token, sid.Value)
	assert.True(t, sid.HttpOnly)
	assert.Equal(t, http.SameSiteNoneMode, sid.SameSite)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e, _ := newAuthServer(t)

	rec := doJSON(e, http.MethodPost, "/auth/login", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["ok"])
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	e, _ := newAuthServer(t)

	rec := doJSON(e, http.MethodPost, "/auth/login", `{"username":"ghost","password":"1234"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeWithBearerToken(t *testing.T) {
	e, cfg := newAuthServer(t)
	token, err := utils.NewSessionToken(cfg.JWTSecret, model.User{ID: "u1", Name: "Admin", Role: "admin"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "Admin", body["user"].(map[string]any)["name"])
}

func TestMeWithCookie(t *testing.T) {
	e, cfg := newAuthServer(t)
	token, err := utils.NewSessionToken(cfg.JWTSecret, model.User{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMeAnonymous(t *testing.T) {
	e, _ := newAuthServer(t)

	rec := doJSON(e, http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"ok": false}, decodeBody(t, rec))
}

func TestMeRejectsForgedToken(t *testing.T) {
	e, _ := newAuthServer(t)
	forged, err := utils.NewSessionToken("other-secret", model.User{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+forged)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	e, _ := newAuthServer(t)

	rec := doJSON(e, http.MethodPost, "/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	header := rec.Header().Get("Set-Cookie")
	require.NotEmpty(t, header)
	assert.True(t, strings.Contains(header, middleware.SessionCookie+"="))
	assert.Contains(t, header, "Max-Age=0", "expired cookie clears the session")
}

func TestExpiredTokenRejected(t *testing.T) {
	e, cfg := newAuthServer(t)
	token, err := utils.NewSessionToken(cfg.JWTSecret, model.User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
