package chatstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
	"github.com/ragviet/ragviet-service/pkg/util"
)

// Memory is an in-memory rag.ChatStore for tests and local development.
type Memory struct {
	mu           sync.RWMutex
	usersByID    map[string]rag.User
	usersByEmail map[string]string
	resetOTPs    map[string]resetEntry
	sessions     map[string]rag.AuthSession
	chatSessions map[string]rag.ChatSession
	turns        map[string][]rag.ChatTurn
	files        map[string]map[string]rag.FileRecord
}

type resetEntry struct {
	otp       string
	expiresAt time.Time
}

// NewMemory constructs an empty store.
func NewMemory() *Memory {
	return &Memory{
		usersByID:    make(map[string]rag.User),
		usersByEmail: make(map[string]string),
		resetOTPs:    make(map[string]resetEntry),
		sessions:     make(map[string]rag.AuthSession),
		chatSessions: make(map[string]rag.ChatSession),
		turns:        make(map[string][]rag.ChatTurn),
		files:        make(map[string]map[string]rag.FileRecord),
	}
}

func (m *Memory) CreateUser(_ context.Context, username, email, passwordHash string) (rag.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.usersByEmail[email]; exists {
		return rag.User{}, rag.ErrValidation
	}
	user := rag.User{ID: uuid.NewString(), Username: username, Email: email, PasswordHash: passwordHash, IsActive: true, CreatedAt: rag.NewTimestamp(util.NowUTC())}
	m.usersByID[user.ID] = user
	m.usersByEmail[email] = user.ID
	return user, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (rag.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return rag.User{}, false, nil
	}
	return m.usersByID[id], true, nil
}

func (m *Memory) GetUserByID(_ context.Context, id string) (rag.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.usersByID[id]
	return user, ok, nil
}

// DeleteUser removes the user and everything owned by them: auth
// sessions, chat sessions, chat turns, and file records.
func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return rag.ErrNotFound
	}
	delete(m.usersByID, id)
	delete(m.usersByEmail, user.Email)
	delete(m.files, id)

	for token, session := range m.sessions {
		if session.UserID == id {
			delete(m.sessions, token)
		}
	}
	for sessionID, session := range m.chatSessions {
		if session.UserID == id {
			delete(m.chatSessions, sessionID)
			delete(m.turns, sessionID)
		}
	}
	return nil
}

// SetUserActive flips the account's active flag; Login and VerifySession
// refuse a user once it is set to false.
func (m *Memory) SetUserActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return rag.ErrNotFound
	}
	user.IsActive = active
	m.usersByID[id] = user
	return nil
}

func (m *Memory) CreateResetToken(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usersByEmail[email]; !ok {
		return "", rag.ErrNotFound
	}
	otp, err := randomDigits(otpDigits)
	if err != nil {
		return "", err
	}
	m.resetOTPs[email] = resetEntry{otp: otp, expiresAt: util.NowUTC().Add(otpTTL)}
	return otp, nil
}

func (m *Memory) ResetPassword(_ context.Context, email, otp, newPasswordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.resetOTPs[email]
	if !ok || entry.otp != otp || util.NowUTC().After(entry.expiresAt) {
		return rag.ErrValidation
	}
	id, ok := m.usersByEmail[email]
	if !ok {
		return rag.ErrNotFound
	}
	user := m.usersByID[id]
	user.PasswordHash = newPasswordHash
	m.usersByID[id] = user
	delete(m.resetOTPs, email)
	return nil
}

func (m *Memory) CreateAuthSession(_ context.Context, userID string, ttl int64) (rag.AuthSession, error) {
	token, err := randomToken()
	if err != nil {
		return rag.AuthSession{}, err
	}
	now := util.NowUTC()
	session := rag.AuthSession{Token: token, UserID: userID, IssuedAt: rag.NewTimestamp(now), ExpiresAt: rag.NewTimestamp(now.Add(time.Duration(ttl) * time.Second))}
	m.mu.Lock()
	m.sessions[token] = session
	m.mu.Unlock()
	return session, nil
}

func (m *Memory) GetAuthSession(_ context.Context, token string) (rag.AuthSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[token]
	return session, ok, nil
}

func (m *Memory) DeleteAuthSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *Memory) CreateChatSession(_ context.Context, userID, title string) (rag.ChatSession, error) {
	ts := rag.NewTimestamp(util.NowUTC())
	session := rag.ChatSession{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: ts, UpdatedAt: ts}
	m.mu.Lock()
	m.chatSessions[session.ID] = session
	m.mu.Unlock()
	return session, nil
}

func (m *Memory) UpdateChatSessionTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.chatSessions[id]
	if !ok {
		return rag.ErrNotFound
	}
	session.Title = title
	session.UpdatedAt = rag.NewTimestamp(util.NowUTC())
	m.chatSessions[id] = session
	return nil
}

func (m *Memory) GetChatSessions(_ context.Context, userID string, limit int) ([]rag.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sessions []rag.ChatSession
	for _, s := range m.chatSessions {
		if s.UserID == userID {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt.Time) })
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (m *Memory) GetChatSession(_ context.Context, id string) (rag.ChatSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.chatSessions[id]
	return session, ok, nil
}

func (m *Memory) GetSessionMessages(_ context.Context, sessionID string) ([]rag.ChatTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := append([]rag.ChatTurn(nil), m.turns[sessionID]...)
	sort.Slice(turns, func(i, j int) bool { return turns[i].CreatedAt.Before(turns[j].CreatedAt.Time) })
	return turns, nil
}

func (m *Memory) SaveChatTurn(_ context.Context, turn rag.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	turn.CreatedAt = rag.NewTimestamp(util.NowUTC())
	m.turns[turn.SessionID] = append(m.turns[turn.SessionID], turn)
	if session, ok := m.chatSessions[turn.SessionID]; ok {
		session.MessageCount++
		session.UpdatedAt = turn.CreatedAt
		m.chatSessions[turn.SessionID] = session
	}
	return nil
}

func (m *Memory) SaveFileRecord(_ context.Context, rec rag.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[rec.OwnerID] == nil {
		m.files[rec.OwnerID] = make(map[string]rag.FileRecord)
	}
	m.files[rec.OwnerID][rec.Filename] = rec
	return nil
}

func (m *Memory) GetUserFiles(_ context.Context, userID string) ([]rag.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []rag.FileRecord
	for _, rec := range m.files[userID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UploadedAt.After(records[j].UploadedAt.Time) })
	return records, nil
}

func (m *Memory) GetUserFile(_ context.Context, userID, filename string) (rag.FileRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.files[userID][filename]
	return rec, ok, nil
}

func (m *Memory) DeleteUserFile(_ context.Context, userID, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files[userID], filename)
	return nil
}

func (m *Memory) UpdateFileChunks(_ context.Context, userID, filename string, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[userID][filename]
	if !ok {
		return rag.ErrNotFound
	}
	rec.ChunkCount = chunkCount
	m.files[userID][filename] = rec
	return nil
}

var _ rag.ChatStore = (*Memory)(nil)
