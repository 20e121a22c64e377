package handler

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/robertos-pos/bc-bridge/internal/config"
	"github.com/robertos-pos/bc-bridge/internal/middleware"
	"github.com/robertos-pos/bc-bridge/internal/model"
	"github.com/robertos-pos/bc-bridge/internal/utils"
)

// AuthHandler issues and clears session tokens for the configured
// terminal accounts.
type AuthHandler struct {
	secret string
	ttl    time.Duration
	users  []model.User
}

// NewAuthHandler hashes the configured credentials and returns the
// handler. Accounts whose password fails to hash are skipped with a
// log line rather than aborting startup.
func NewAuthHandler(cfg config.Config) *AuthHandler {
	users := make([]model.User, 0, len(cfg.Users))
	for _, cred := range cfg.Users {
		hash, err := utils.HashPassword(cred.Password, cfg.BcryptCost)
		if err != nil {
			log.Printf("[auth] hashing password for %q: %v", cred.Username, err)
			continue
		}
		users = append(users, model.User{
			ID:           cred.ID,
			Name:         cred.Name,
			Username:     cred.Username,
			Role:         cred.Role,
			PasswordHash: hash,
		})
	}
	return &AuthHandler{secret: cfg.JWTSecret, ttl: cfg.SessionTTL, users: users}
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userPart struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Login verifies credentials, signs a session token, and hands it
// back both ways at once: as an httpOnly sid cookie for the browser
// terminals and in the body for clients that prefer a Bearer header.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)

	var user *model.User
	for i := range h.users {
		if h.users[i].Username == req.Username {
			user = &h.users[i]
			break
		}
	}
	if user == nil || !utils.VerifyPassword(user.PasswordHash, req.Password) {
		log.Printf("[auth] invalid credentials for %q", req.Username)
		return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "error": "invalid username or password"})
	}

	token, err := utils.NewSessionToken(h.secret, *user, h.ttl)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "error": "issue token failed"})
	}
	c.SetCookie(sessionCookie(token, h.ttl))
	log.Printf("[auth] login success for %q", req.Username)
	return c.JSON(http.StatusOK, echo.Map{
		"ok":    true,
		"token": token,
		"user":  userPart{ID: user.ID, Name: user.Name, Role: user.Role},
	})
}

// Me reports the identity behind the presented token. It verifies the
// token itself instead of sitting behind SessionAuth so the response
// shape stays `{ok:false}` for anonymous callers.
func (h *AuthHandler) Me(c echo.Context) error {
	raw := middleware.ReadToken(c)
	if raw == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false})
	}
	sess, err := utils.ParseSessionToken(h.secret, raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":   true,
		"user": userPart{ID: sess.UID, Name: sess.Name, Role: sess.Role},
	})
}

// Logout clears the session cookie. The token itself stays valid
// until expiry; the bridge keeps no revocation list.
func (h *AuthHandler) Logout(c echo.Context) error {
	cookie := sessionCookie("", 0)
	cookie.MaxAge = -1
	c.SetCookie(cookie)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// sessionCookie builds the cross-site cookie the hosted terminals
// need: httpOnly, Secure and SameSite=None so the web app on its own
// origin can reach the bridge.
func sessionCookie(token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   int(ttl / time.Second),
	}
}
