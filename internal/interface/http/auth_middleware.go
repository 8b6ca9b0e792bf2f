package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ragviet/ragviet-service/internal/domain/auth"
	apperrors "github.com/ragviet/ragviet-service/pkg/errors"
)

const sessionCookieName = "ragviet_session"

// authMiddleware accepts a session token from whichever source the caller
// used — bearer header, session_id query/body field, or the ragviet_session
// cookie — and normalizes it into a verified auth.UserView on the context.
func authMiddleware(svc auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractSessionToken(c)
		if token == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
			return
		}
		user, err := svc.VerifySession(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			code := "invalid_token"
			switch {
			case apperrors.IsCode(err, "invalid_token"):
			case apperrors.IsCode(err, "account_disabled"):
				status = http.StatusForbidden
				code = "account_disabled"
			default:
				status = http.StatusInternalServerError
				code = "auth_failed"
			}
			abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
			return
		}
		setAuthUser(c, user)
		c.Next()
	}
}

func extractSessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	if token := c.Query("session_id"); token != "" {
		return token
	}
	return sessionTokenFromBody(c)
}

// sessionTokenFromBody peeks a JSON body for a session_id field without
// consuming it, so handlers downstream can still bind their own payload.
func sessionTokenFromBody(c *gin.Context) string {
	if c.Request.Body == nil || c.Request.Method == http.MethodGet {
		return ""
	}
	raw, err := io.ReadAll(c.Request.Body)
	c.Request.Body.Close()
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.SessionID
}

func setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, token, sessionCookieMaxAge, "/", "", cookieSecure(c), true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", cookieSecure(c), true)
}

func cookieSecure(c *gin.Context) bool {
	return c.Request.TLS != nil || strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true")
}

const sessionCookieMaxAge = 7 * 24 * 60 * 60 // 7 days, seconds
