package auth

import (
	"time"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

// Config drives authentication behavior.
type Config struct {
	SessionTTL time.Duration
}

// RegisterRequest captures the registration payload.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest captures login details.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	SessionID     string   `json:"sessionId"`
	User          UserView `json:"user"`
	ChatSessionID string   `json:"chatSessionId,omitempty"`
}

// UserView trims sensitive fields before returning a user to the caller.
type UserView struct {
	ID        string        `json:"id"`
	Username  string        `json:"username"`
	Email     string        `json:"email"`
	CreatedAt rag.Timestamp `json:"createdAt"`
}

// ForgotPasswordRequest asks for a password-reset OTP. The OTP is stored
// for ResetPassword; no email is sent.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest consumes an OTP to set a new password.
type ResetPasswordRequest struct {
	Email           string `json:"email"`
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}
