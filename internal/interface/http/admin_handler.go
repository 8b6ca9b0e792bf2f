package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

// adminMiddleware gates the admin surface on a static API key, separate
// from end-user sessions — mirrors the same endpoints without the owner
// restriction, so it must not be reachable with an ordinary session token.
func adminMiddleware(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" || c.GetHeader("X-Admin-Key") != adminKey {
			abortWithError(c, NewHTTPError(http.StatusForbidden, "forbidden", "admin access required", nil))
			return
		}
		c.Next()
	}
}

// AdminListFiles returns any user's files by id.
func (h *Handler) AdminListFiles(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "user_id is required", nil))
		return
	}
	files, err := h.chatStore.GetUserFiles(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

type adminDeleteFileRequest struct {
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
}

// AdminDeleteFile removes any user's file.
func (h *Handler) AdminDeleteFile(c *gin.Context) {
	var req adminDeleteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Filename == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "user_id and filename are required", err))
		return
	}
	if err := h.ingestion.DeleteFile(c.Request.Context(), req.UserID, req.Filename); err != nil {
		status := http.StatusInternalServerError
		code := "delete_failed"
		if errors.Is(err, rag.ErrNotFound) {
			status = http.StatusNotFound
			code = "not_found"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type adminDeleteUserRequest struct {
	UserID string `json:"user_id"`
}

// AdminDeleteUser removes a user and cascades across their files, chunks,
// chat sessions, and chat turns.
func (h *Handler) AdminDeleteUser(c *gin.Context) {
	var req adminDeleteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "user_id is required", err))
		return
	}
	if err := h.ingestion.ClearAllFiles(c.Request.Context(), req.UserID); err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "delete_failed", errMessage(err), err))
		return
	}
	if err := h.chatStore.DeleteUser(c.Request.Context(), req.UserID); err != nil {
		status := http.StatusInternalServerError
		code := "delete_failed"
		if errors.Is(err, rag.ErrNotFound) {
			status = http.StatusNotFound
			code = "not_found"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type adminSetUserActiveRequest struct {
	UserID string `json:"user_id"`
	Active bool   `json:"active"`
}

// AdminSetUserActive enables or disables a user's account. A disabled
// account is refused at login and when its existing sessions are
// re-verified.
func (h *Handler) AdminSetUserActive(c *gin.Context) {
	var req adminSetUserActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "user_id is required", err))
		return
	}
	if err := h.chatStore.SetUserActive(c.Request.Context(), req.UserID, req.Active); err != nil {
		status := http.StatusInternalServerError
		code := "update_failed"
		if errors.Is(err, rag.ErrNotFound) {
			status = http.StatusNotFound
			code = "not_found"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AdminListChatSessions returns any user's chat sessions.
func (h *Handler) AdminListChatSessions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "user_id is required", nil))
		return
	}
	sessions, err := h.chatStore.GetChatSessions(c.Request.Context(), userID, 0)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
