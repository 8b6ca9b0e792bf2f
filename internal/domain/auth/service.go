package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
	apperrors "github.com/ragviet/ragviet-service/pkg/errors"
	"github.com/ragviet/ragviet-service/pkg/util"
)

// Service exposes authentication workflows. Sessions are opaque,
// server-side tokens backed by ChatStore (optionally fronted by the
// Valkey session cache in authstore) — no user
// state is embedded in the token itself.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (UserView, error)
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	VerifySession(ctx context.Context, sessionID string) (UserView, error)
	Logout(ctx context.Context, sessionID string) error
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type service struct {
	cfg    Config
	store  rag.ChatStore
	logger *slog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg Config, store rag.ChatStore, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{cfg: cfg, store: store, logger: logger.With("component", "auth.service")}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (UserView, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return UserView{}, apperrors.Wrap("invalid_input", "email không hợp lệ", err)
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return UserView{}, apperrors.Wrap("invalid_input", "vui lòng nhập tên đăng nhập", nil)
	}
	if req.Password != req.ConfirmPassword {
		return UserView{}, apperrors.Wrap("invalid_input", "mật khẩu xác nhận không khớp", nil)
	}
	if err := validatePassword(req.Password); err != nil {
		return UserView{}, apperrors.Wrap("invalid_input", err.Error(), nil)
	}

	_, exists, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return UserView{}, apperrors.Wrap("auth_error", "không thể kiểm tra tài khoản", err)
	}
	if exists {
		return UserView{}, apperrors.Wrap("email_exists", "email đã được đăng ký", ErrEmailExists)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserView{}, apperrors.Wrap("auth_error", "không thể mã hóa mật khẩu", err)
	}

	user, err := s.store.CreateUser(ctx, username, email, string(hashed))
	if err != nil {
		if errors.Is(err, rag.ErrValidation) {
			return UserView{}, apperrors.Wrap("email_exists", "email đã được đăng ký", ErrEmailExists)
		}
		return UserView{}, apperrors.Wrap("auth_error", "không thể tạo tài khoản", err)
	}
	return toView(user), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("invalid_input", "email không hợp lệ", err)
	}
	if len(req.Password) < 6 {
		return LoginResponse{}, apperrors.Wrap("invalid_input", "mật khẩu phải có ít nhất 6 ký tự", nil)
	}

	user, found, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("auth_error", "không thể tải tài khoản", err)
	}
	if !found {
		return LoginResponse{}, apperrors.Wrap("invalid_credentials", "email hoặc mật khẩu không đúng", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResponse{}, apperrors.Wrap("invalid_credentials", "email hoặc mật khẩu không đúng", ErrInvalidCredentials)
	}
	if !user.IsActive {
		return LoginResponse{}, apperrors.Wrap("account_disabled", "tài khoản đã bị vô hiệu hóa", ErrAccountDisabled)
	}

	session, err := s.store.CreateAuthSession(ctx, user.ID, int64(s.cfg.SessionTTL.Seconds()))
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("auth_error", "không thể tạo phiên đăng nhập", err)
	}

	chatSession, err := s.store.CreateChatSession(ctx, user.ID, defaultSessionTitle)
	if err != nil {
		s.logger.Warn("create chat session at login failed", "user_id", user.ID, "error", err)
	}

	return LoginResponse{SessionID: session.Token, User: toView(user), ChatSessionID: chatSession.ID}, nil
}

func (s *service) VerifySession(ctx context.Context, sessionID string) (UserView, error) {
	if strings.TrimSpace(sessionID) == "" {
		return UserView{}, apperrors.Wrap("invalid_token", "thiếu session", ErrInvalidSession)
	}
	session, found, err := s.store.GetAuthSession(ctx, sessionID)
	if err != nil {
		return UserView{}, apperrors.Wrap("auth_error", "không thể xác thực phiên", err)
	}
	if !found || isExpired(session) {
		return UserView{}, apperrors.Wrap("invalid_token", "phiên không hợp lệ hoặc đã hết hạn", ErrInvalidSession)
	}
	user, found, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return UserView{}, apperrors.Wrap("auth_error", "không thể tải tài khoản", err)
	}
	if !found {
		return UserView{}, apperrors.Wrap("user_not_found", "tài khoản không tồn tại", nil)
	}
	if !user.IsActive {
		return UserView{}, apperrors.Wrap("account_disabled", "tài khoản đã bị vô hiệu hóa", ErrAccountDisabled)
	}
	return toView(user), nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	return s.store.DeleteAuthSession(ctx, sessionID)
}

func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return apperrors.Wrap("invalid_input", "email không hợp lệ", err)
	}
	_, err = s.store.CreateResetToken(ctx, email)
	if err != nil {
		if errors.Is(err, rag.ErrNotFound) {
			// Do not reveal account existence to the caller.
			return nil
		}
		return apperrors.Wrap("auth_error", "không thể tạo mã khôi phục", err)
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return apperrors.Wrap("invalid_input", "email không hợp lệ", err)
	}
	if req.NewPassword != req.ConfirmPassword {
		return apperrors.Wrap("invalid_input", "mật khẩu xác nhận không khớp", nil)
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return apperrors.Wrap("invalid_input", err.Error(), nil)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap("auth_error", "không thể mã hóa mật khẩu", err)
	}
	if err := s.store.ResetPassword(ctx, email, req.Token, string(hashed)); err != nil {
		if errors.Is(err, rag.ErrValidation) {
			return apperrors.Wrap("invalid_token", "mã khôi phục không hợp lệ hoặc đã hết hạn", err)
		}
		return apperrors.Wrap("auth_error", "không thể đặt lại mật khẩu", err)
	}
	return nil
}

const defaultSessionTitle = "Đoạn chat mới"

func isExpired(session rag.AuthSession) bool {
	return session.ExpiresAt.Before(util.NowUTC())
}

func toView(user rag.User) UserView {
	return UserView{ID: user.ID, Username: user.Username, Email: user.Email, CreatedAt: user.CreatedAt}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < 6 {
		return errors.New("mật khẩu phải có ít nhất 6 ký tự")
	}
	return nil
}
