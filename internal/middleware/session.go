package middleware // declare the middleware package; contains reusable HTTP middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/robertos-pos/bc-bridge/internal/utils"
)

// SessionCookie is the cookie the login handler sets. The middleware
// accepts it interchangeably with a Bearer header because browser
// terminals authenticate via cookie while scripted clients send the
// header.
const SessionCookie = "sid"

// sessionKey is the echo context key the verified session is stored
// under; handlers read it back with SessionFrom.
const sessionKey = "session"

// ReadToken extracts the raw session token from a request: the
// Authorization header wins, the sid cookie is the fallback. Empty
// string means unauthenticated.
func ReadToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if ck, err := c.Cookie(SessionCookie); err == nil {
		return ck.Value
	}
	return ""
}

// SessionAuth returns middleware that rejects requests without a
// valid session token and stores the verified session in the context
// for handlers.
func SessionAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ReadToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "error": "unauthorized"})
			}
			sess, err := utils.ParseSessionToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "error": "unauthorized"})
			}
			c.Set(sessionKey, sess)
			return next(c)
		}
	}
}

// SessionFrom returns the session stored by SessionAuth, if any.
func SessionFrom(c echo.Context) (utils.Session, bool) {
	sess, ok := c.Get(sessionKey).(utils.Session)
	return sess, ok
}
