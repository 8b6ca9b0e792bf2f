package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ragviet/ragviet-service/internal/domain/auth"
	"github.com/ragviet/ragviet-service/internal/domain/rag"
	apperrors "github.com/ragviet/ragviet-service/pkg/errors"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	authSvc    auth.Service
	answerer   *rag.Answerer
	ingestion  *rag.IngestionCoordinator
	chatStore  rag.ChatStore
	adminKey   string
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(authSvc auth.Service, answerer *rag.Answerer, ingestion *rag.IngestionCoordinator, chatStore rag.ChatStore, adminKey string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		authSvc:   authSvc,
		answerer:  answerer,
		ingestion: ingestion,
		chatStore: chatStore,
		adminKey:  adminKey,
		logger:    logger.With("component", "http.handler"),
	}
}

// Register handles account creation.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	user, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Đăng ký thành công",
		"user":    user,
	})
}

// Login authenticates and issues an opaque session, returned both in the
// JSON response (session_id and access_token) and as the ragviet_session
// cookie; later requests may carry it as a bearer header, a session_id
// field, or the cookie.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, authError(err))
		return
	}
	setSessionCookie(c, resp.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"session_id":      resp.SessionID,
		"access_token":    resp.SessionID,
		"user":            resp.User,
		"chat_session_id": resp.ChatSessionID,
	})
}

// Logout invalidates the caller's session.
func (h *Handler) Logout(c *gin.Context) {
	token := extractSessionToken(c)
	if err := h.authSvc.Logout(c.Request.Context(), token); err != nil {
		abortWithError(c, authError(err))
		return
	}
	clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ForgotPassword issues a password-reset OTP, never revealing whether the
// account exists. The OTP is stored for ResetPassword; no email is sent.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req auth.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := h.authSvc.ForgotPassword(c.Request.Context(), req); err != nil {
		abortWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Nếu email tồn tại, mã xác nhận đã được gửi"})
}

// ResetPassword consumes an OTP to set a new password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req auth.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if err := h.authSvc.ResetPassword(c.Request.Context(), req); err != nil {
		abortWithError(c, authError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Đặt lại mật khẩu thành công"})
}

// VerifySession reports whether the caller's session is still valid.
func (h *Handler) VerifySession(c *gin.Context) {
	token := extractSessionToken(c)
	user, err := h.authSvc.VerifySession(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	sessions, err := h.chatStore.GetChatSessions(c.Request.Context(), user.ID, 1)
	chatSessionID := ""
	if err == nil && len(sessions) > 0 {
		chatSessionID = sessions[0].ID
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":           true,
		"user":            user,
		"chat_session_id": chatSessionID,
	})
}

func authError(err error) *HTTPError {
	status := http.StatusInternalServerError
	code := "auth_failed"
	switch {
	case apperrors.IsCode(err, "invalid_input"):
		status = http.StatusBadRequest
		code = "invalid_request"
	case apperrors.IsCode(err, "email_exists"):
		status = http.StatusConflict
		code = "email_exists"
	case apperrors.IsCode(err, "invalid_credentials"):
		status = http.StatusUnauthorized
		code = "invalid_credentials"
	case apperrors.IsCode(err, "invalid_token"):
		status = http.StatusUnauthorized
		code = "invalid_token"
	case apperrors.IsCode(err, "user_not_found"):
		status = http.StatusNotFound
		code = "user_not_found"
	case apperrors.IsCode(err, "account_disabled"):
		status = http.StatusForbidden
		code = "account_disabled"
	}
	return NewHTTPError(status, code, errMessage(err), err)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
