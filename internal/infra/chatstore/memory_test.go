package chatstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

func TestMemoryCreateUserRejectsDuplicateEmail(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, "alice2", "alice@example.com", "hash2")
	require.Error(t, err)
}

func TestMemoryResetPasswordFlow(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	_, err := store.CreateUser(ctx, "bob", "bob@example.com", "old-hash")
	require.NoError(t, err)

	otp, err := store.CreateResetToken(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Len(t, otp, otpDigits)

	err = store.ResetPassword(ctx, "bob@example.com", "000000", "new-hash")
	require.Error(t, err)

	err = store.ResetPassword(ctx, "bob@example.com", otp, "new-hash")
	require.NoError(t, err)

	user, ok, err := store.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new-hash", user.PasswordHash)
}

func TestMemorySaveChatTurnIncrementsMessageCount(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	session, err := store.CreateChatSession(ctx, "user-1", "Đoạn chat mới")
	require.NoError(t, err)

	require.NoError(t, store.SaveChatTurn(ctx, chatTurn(session.ID, "user-1", "hi", "hello")))
	require.NoError(t, store.SaveChatTurn(ctx, chatTurn(session.ID, "user-1", "again", "again reply")))

	sessions, err := store.GetChatSessions(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, 2, sessions[0].MessageCount)

	messages, err := store.GetSessionMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "hi", messages[0].Message)
}

func TestMemoryFileRecordsScopedPerUser(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, store.SaveFileRecord(ctx, fileRecord("user-1", "a.pdf")))
	require.NoError(t, store.SaveFileRecord(ctx, fileRecord("user-2", "a.pdf")))

	files, err := store.GetUserFiles(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.NoError(t, store.DeleteUserFile(ctx, "user-1", "a.pdf"))
	_, ok, err := store.GetUserFile(ctx, "user-1", "a.pdf")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = store.GetUserFile(ctx, "user-2", "a.pdf")
	require.NoError(t, err)
	require.True(t, ok)
}

func chatTurn(sessionID, userID, message, response string) rag.ChatTurn {
	return rag.ChatTurn{SessionID: sessionID, UserID: userID, Message: message, Response: response}
}

func fileRecord(userID, filename string) rag.FileRecord {
	return rag.FileRecord{OwnerID: userID, Filename: filename}
}
