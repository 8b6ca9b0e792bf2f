package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

type chatSendRequest struct {
	Message       string `json:"message"`
	SelectedFile  string `json:"selected_file"`
	ChatSessionID string `json:"chat_session_id"`
}

// ChatSend answers a question against the caller's indexed files.
func (h *Handler) ChatSend(c *gin.Context) {
	user, ok := getAuthUser(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
		return
	}
	var req chatSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if req.Message == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "message không được để trống", nil))
		return
	}
	answer, sessionID, err := h.answerer.Answer(c.Request.Context(), user.ID, req.ChatSessionID, req.Message, req.SelectedFile)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "chat_failed", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response":        answer,
		"chat_session_id": sessionID,
	})
}

// ListChatSessions returns the caller's chat sessions, newest first.
func (h *Handler) ListChatSessions(c *gin.Context) {
	user, ok := getAuthUser(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
		return
	}
	sessions, err := h.chatStore.GetChatSessions(c.Request.Context(), user.ID, 0)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// CreateChatSession starts a new, empty chat session for the caller.
func (h *Handler) CreateChatSession(c *gin.Context) {
	user, ok := getAuthUser(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
		return
	}
	session, err := h.chatStore.CreateChatSession(c.Request.Context(), user.ID, "Đoạn chat mới")
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "create_failed", errMessage(err), err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// ChatHistory returns the ordered turns of one chat session owned by the
// caller.
func (h *Handler) ChatHistory(c *gin.Context) {
	user, ok := getAuthUser(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
		return
	}
	sessionID := c.Param("id")
	session, found, err := h.chatStore.GetChatSession(c.Request.Context(), sessionID)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	if !found || session.UserID != user.ID {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "phiên chat không tồn tại", nil))
		return
	}
	turns, err := h.chatStore.GetSessionMessages(c.Request.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		code := "fetch_failed"
		if errors.Is(err, rag.ErrNotFound) {
			status = http.StatusNotFound
			code = "not_found"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": turns})
}
