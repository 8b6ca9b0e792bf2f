package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

type fakeStore struct {
	usersByEmail map[string]rag.User
	usersByID    map[string]rag.User
	sessions     map[string]rag.AuthSession
	resetOTP     map[string]string
	nextID       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByEmail: make(map[string]rag.User),
		usersByID:    make(map[string]rag.User),
		sessions:     make(map[string]rag.AuthSession),
		resetOTP:     make(map[string]string),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, username, email, passwordHash string) (rag.User, error) {
	if _, exists := f.usersByEmail[email]; exists {
		return rag.User{}, rag.ErrValidation
	}
	f.nextID++
	user := rag.User{ID: "user-" + string(rune('0'+f.nextID)), Username: username, Email: email, PasswordHash: passwordHash, IsActive: true, CreatedAt: rag.NewTimestamp(time.Now().UTC())}
	f.usersByEmail[email] = user
	f.usersByID[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (rag.User, bool, error) {
	user, ok := f.usersByEmail[email]
	return user, ok, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (rag.User, bool, error) {
	user, ok := f.usersByID[id]
	return user, ok, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	user, ok := f.usersByID[id]
	if !ok {
		return rag.ErrNotFound
	}
	delete(f.usersByID, id)
	delete(f.usersByEmail, user.Email)
	return nil
}

func (f *fakeStore) SetUserActive(_ context.Context, id string, active bool) error {
	user, ok := f.usersByID[id]
	if !ok {
		return rag.ErrNotFound
	}
	user.IsActive = active
	f.usersByID[id] = user
	f.usersByEmail[user.Email] = user
	return nil
}

func (f *fakeStore) CreateResetToken(_ context.Context, email string) (string, error) {
	if _, ok := f.usersByEmail[email]; !ok {
		return "", rag.ErrNotFound
	}
	f.resetOTP[email] = "123456"
	return "123456", nil
}

func (f *fakeStore) ResetPassword(_ context.Context, email, otp, newPasswordHash string) error {
	if f.resetOTP[email] != otp {
		return rag.ErrValidation
	}
	user := f.usersByEmail[email]
	user.PasswordHash = newPasswordHash
	f.usersByEmail[email] = user
	f.usersByID[user.ID] = user
	return nil
}

func (f *fakeStore) CreateAuthSession(_ context.Context, userID string, ttl int64) (rag.AuthSession, error) {
	now := time.Now().UTC()
	session := rag.AuthSession{Token: "token-" + userID, UserID: userID, IssuedAt: rag.NewTimestamp(now), ExpiresAt: rag.NewTimestamp(now.Add(time.Duration(ttl) * time.Second))}
	f.sessions[session.Token] = session
	return session, nil
}

func (f *fakeStore) GetAuthSession(_ context.Context, token string) (rag.AuthSession, bool, error) {
	session, ok := f.sessions[token]
	return session, ok, nil
}

func (f *fakeStore) DeleteAuthSession(_ context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeStore) CreateChatSession(_ context.Context, userID, title string) (rag.ChatSession, error) {
	return rag.ChatSession{ID: "chat-" + userID, UserID: userID, Title: title}, nil
}
func (f *fakeStore) UpdateChatSessionTitle(context.Context, string, string) error { return nil }
func (f *fakeStore) GetChatSessions(context.Context, string, int) ([]rag.ChatSession, error) {
	return nil, nil
}
func (f *fakeStore) GetChatSession(context.Context, string) (rag.ChatSession, bool, error) {
	return rag.ChatSession{}, false, nil
}
func (f *fakeStore) GetSessionMessages(context.Context, string) ([]rag.ChatTurn, error) {
	return nil, nil
}
func (f *fakeStore) SaveChatTurn(context.Context, rag.ChatTurn) error       { return nil }
func (f *fakeStore) SaveFileRecord(context.Context, rag.FileRecord) error   { return nil }
func (f *fakeStore) GetUserFiles(context.Context, string) ([]rag.FileRecord, error) {
	return nil, nil
}
func (f *fakeStore) GetUserFile(context.Context, string, string) (rag.FileRecord, bool, error) {
	return rag.FileRecord{}, false, nil
}
func (f *fakeStore) DeleteUserFile(context.Context, string, string) error { return nil }
func (f *fakeStore) UpdateFileChunks(context.Context, string, string, int) error {
	return nil
}

func newTestService() (Service, *fakeStore) {
	store := newFakeStore()
	return NewService(Config{SessionTTL: time.Hour}, store, nil), store
}

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "an", Email: "an@example.com", Password: "abcdef", ConfirmPassword: "zzzzzz"})
	require.Error(t, err)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	req := RegisterRequest{Username: "an", Email: "an@example.com", Password: "abcdef", ConfirmPassword: "abcdef"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	require.ErrorIs(t, err, ErrEmailExists)
}

func TestLoginSucceedsAndIssuesSessionAndChatSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{Username: "an", Email: "an@example.com", Password: "abcdef", ConfirmPassword: "abcdef"})
	require.NoError(t, err)

	resp, err := svc.Login(ctx, LoginRequest{Email: "an@example.com", Password: "abcdef"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	require.NotEmpty(t, resp.ChatSessionID)
	require.Equal(t, "an@example.com", resp.User.Email)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{Username: "an", Email: "an@example.com", Password: "abcdef", ConfirmPassword: "abcdef"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "an@example.com", Password: "wrongpass"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifySessionRejectsExpiredSession(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	store.usersByEmail["an@example.com"] = rag.User{ID: "user-1", Email: "an@example.com"}
	store.usersByID["user-1"] = store.usersByEmail["an@example.com"]
	store.sessions["expired-token"] = rag.AuthSession{Token: "expired-token", UserID: "user-1", ExpiresAt: rag.NewTimestamp(time.Now().UTC().Add(-time.Hour))}

	_, err := svc.VerifySession(ctx, "expired-token")
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestResetPasswordWithOTPAllowsNewLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{Username: "an", Email: "an@example.com", Password: "abcdef", ConfirmPassword: "abcdef"})
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, ForgotPasswordRequest{Email: "an@example.com"}))
	require.NoError(t, svc.ResetPassword(ctx, ResetPasswordRequest{Email: "an@example.com", Token: "123456", NewPassword: "newpass1", ConfirmPassword: "newpass1"}))

	_, err = svc.Login(ctx, LoginRequest{Email: "an@example.com", Password: "newpass1"})
	require.NoError(t, err)
}
