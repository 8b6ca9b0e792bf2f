// Package chatstore persists users, auth sessions, chat sessions/turns and
// file records, implementing rag.ChatStore.
package chatstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
	"github.com/ragviet/ragviet-service/pkg/util"
)

const (
	otpDigits  = 6
	otpTTL     = 15 * time.Minute
	errDupCode = "23505"
)

// Postgres implements rag.ChatStore against the schema sketched for this
// service (users, auth_sessions, file_records, chat_sessions, chat_turns).
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) CreateUser(ctx context.Context, username, email, passwordHash string) (rag.User, error) {
	id := uuid.NewString()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, true, NOW())
		RETURNING id, username, email, password_hash, is_active, created_at
	`, id, username, email, passwordHash)
	user, err := scanUser(row)
	if err != nil {
		if isDuplicateError(err) {
			return rag.User{}, rag.ErrValidation
		}
		return rag.User{}, err
	}
	return user, nil
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (rag.User, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, is_active, created_at
		FROM users WHERE email = $1
	`, email)
	return scanUserOptional(row)
}

func (s *Postgres) GetUserByID(ctx context.Context, id string) (rag.User, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, is_active, created_at
		FROM users WHERE id = $1
	`, id)
	return scanUserOptional(row)
}

// DeleteUser removes the user and cascades across auth sessions, chat
// sessions, chat turns, and file records within one transaction.
func (s *Postgres) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM auth_sessions WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chat_turns WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chat_sessions WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM file_records WHERE owner_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return rag.ErrNotFound
	}
	return tx.Commit(ctx)
}

// SetUserActive flips the account's active flag; Login and VerifySession
// refuse a user once it is set to false.
func (s *Postgres) SetUserActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return rag.ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateResetToken(ctx context.Context, email string) (string, error) {
	otp, err := randomDigits(otpDigits)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET reset_otp = $1, reset_otp_expires_at = $2
		WHERE email = $3
	`, otp, util.NowUTC().Add(otpTTL), email)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", rag.ErrNotFound
	}
	return otp, nil
}

func (s *Postgres) ResetPassword(ctx context.Context, email, otp, newPasswordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, reset_otp = NULL, reset_otp_expires_at = NULL
		WHERE email = $2 AND reset_otp = $3 AND reset_otp_expires_at > NOW()
	`, newPasswordHash, email, otp)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return rag.ErrValidation
	}
	return nil
}

func (s *Postgres) CreateAuthSession(ctx context.Context, userID string, ttl int64) (rag.AuthSession, error) {
	token, err := randomToken()
	if err != nil {
		return rag.AuthSession{}, fmt.Errorf("generate session token: %w", err)
	}
	now := util.NowUTC()
	session := rag.AuthSession{Token: token, UserID: userID, IssuedAt: rag.NewTimestamp(now), ExpiresAt: rag.NewTimestamp(now.Add(time.Duration(ttl) * time.Second))}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO auth_sessions (token, user_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, session.Token, session.UserID, session.IssuedAt, session.ExpiresAt)
	if err != nil {
		return rag.AuthSession{}, err
	}
	return session, nil
}

func (s *Postgres) GetAuthSession(ctx context.Context, token string) (rag.AuthSession, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT token, user_id, issued_at, expires_at
		FROM auth_sessions WHERE token = $1
	`, token)
	var session rag.AuthSession
	err := row.Scan(&session.Token, &session.UserID, &session.IssuedAt, &session.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rag.AuthSession{}, false, nil
	}
	if err != nil {
		return rag.AuthSession{}, false, err
	}
	return session, true, nil
}

func (s *Postgres) DeleteAuthSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE token = $1`, token)
	return err
}

func (s *Postgres) CreateChatSession(ctx context.Context, userID, title string) (rag.ChatSession, error) {
	id := uuid.NewString()
	ts := rag.NewTimestamp(util.NowUTC())
	session := rag.ChatSession{ID: id, UserID: userID, Title: title, CreatedAt: ts, UpdatedAt: ts}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at, message_count)
		VALUES ($1, $2, $3, $4, $5, 0)
	`, session.ID, session.UserID, session.Title, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return rag.ChatSession{}, err
	}
	return session, nil
}

func (s *Postgres) UpdateChatSessionTitle(ctx context.Context, id, title string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE chat_sessions SET title = $1, updated_at = NOW() WHERE id = $2
	`, title, id)
	return err
}

func (s *Postgres) GetChatSessions(ctx context.Context, userID string, limit int) ([]rag.ChatSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, created_at, updated_at, message_count
		FROM chat_sessions WHERE user_id = $1
		ORDER BY updated_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []rag.ChatSession
	for rows.Next() {
		var sess rag.ChatSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Postgres) GetChatSession(ctx context.Context, id string) (rag.ChatSession, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, title, created_at, updated_at, message_count
		FROM chat_sessions WHERE id = $1
	`, id)
	var sess rag.ChatSession
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt, &sess.MessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return rag.ChatSession{}, false, nil
	}
	if err != nil {
		return rag.ChatSession{}, false, err
	}
	return sess, true, nil
}

func (s *Postgres) GetSessionMessages(ctx context.Context, sessionID string) ([]rag.ChatTurn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, session_id, message, response, COALESCE(selected_file, ''), created_at
		FROM chat_turns WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []rag.ChatTurn
	for rows.Next() {
		var turn rag.ChatTurn
		if err := rows.Scan(&turn.ID, &turn.UserID, &turn.SessionID, &turn.Message, &turn.Response, &turn.SelectedFile, &turn.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func (s *Postgres) SaveChatTurn(ctx context.Context, turn rag.ChatTurn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	id := turn.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO chat_turns (id, user_id, session_id, message, response, selected_file, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())
	`, id, turn.UserID, turn.SessionID, turn.Message, turn.Response, turn.SelectedFile)
	if err != nil {
		return err
	}

	if turn.SessionID != "" {
		_, err = tx.Exec(ctx, `
			UPDATE chat_sessions SET message_count = message_count + 1, updated_at = NOW()
			WHERE id = $1
		`, turn.SessionID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Postgres) SaveFileRecord(ctx context.Context, rec rag.FileRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO file_records (owner_id, filename, blob_url, blob_external_id, chunk_count, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, filename) DO UPDATE SET
			blob_url = EXCLUDED.blob_url,
			blob_external_id = EXCLUDED.blob_external_id,
			chunk_count = EXCLUDED.chunk_count,
			uploaded_at = EXCLUDED.uploaded_at
	`, rec.OwnerID, rec.Filename, rec.BlobURL, rec.BlobKey, rec.ChunkCount, rec.UploadedAt)
	return err
}

func (s *Postgres) GetUserFiles(ctx context.Context, userID string) ([]rag.FileRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT owner_id, filename, blob_url, blob_external_id, chunk_count, uploaded_at
		FROM file_records WHERE owner_id = $1
		ORDER BY uploaded_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []rag.FileRecord
	for rows.Next() {
		var rec rag.FileRecord
		if err := rows.Scan(&rec.OwnerID, &rec.Filename, &rec.BlobURL, &rec.BlobKey, &rec.ChunkCount, &rec.UploadedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Postgres) GetUserFile(ctx context.Context, userID, filename string) (rag.FileRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT owner_id, filename, blob_url, blob_external_id, chunk_count, uploaded_at
		FROM file_records WHERE owner_id = $1 AND filename = $2
	`, userID, filename)
	var rec rag.FileRecord
	err := row.Scan(&rec.OwnerID, &rec.Filename, &rec.BlobURL, &rec.BlobKey, &rec.ChunkCount, &rec.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rag.FileRecord{}, false, nil
	}
	if err != nil {
		return rag.FileRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Postgres) DeleteUserFile(ctx context.Context, userID, filename string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM file_records WHERE owner_id = $1 AND filename = $2`, userID, filename)
	return err
}

func (s *Postgres) UpdateFileChunks(ctx context.Context, userID, filename string, chunkCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE file_records SET chunk_count = $1 WHERE owner_id = $2 AND filename = $3
	`, chunkCount, userID, filename)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (rag.User, error) {
	var user rag.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsActive, &user.CreatedAt); err != nil {
		return rag.User{}, err
	}
	return user, nil
}

func scanUserOptional(row rowScanner) (rag.User, bool, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return rag.User{}, false, nil
	}
	if err != nil {
		return rag.User{}, false, err
	}
	return user, true, nil
}

func isDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == errDupCode
	}
	return false
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + num.Int64())
	}
	return string(digits), nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

var _ rag.ChatStore = (*Postgres)(nil)
