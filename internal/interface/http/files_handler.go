package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ragviet/ragviet-service/internal/domain/rag"
)

// UploadFiles accepts one or more PDFs under the multipart field "files"
// and runs them through the ingestion pipeline.
func (h *Handler) UploadFiles(c *gin.Context) {
	user, ok := getAuthUser(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "multipart form required", err))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "no files provided", nil))
		return
	}

	files := make([]rag.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "failed to read upload", err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusInternalServerError, "upload_failed", "failed to read file", err))
			return
		}
		files = append(files, rag.UploadFile{Filename: fh.Filename, Data: data})
	}

	summary, err := h.ingestion.Ingest(c.Request.Context(), user.ID, files)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "upload_failed", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"total_files":        summary.TotalFiles,
		"files_with_text":    summary.FilesWithText,
		"files_without_text": summary.FilesWithoutText,
		"total_pages":        summary.TotalPages,
		"failures":           summary.Failures,
	})
}

// ListFiles returns the caller's registered files, newest first.
func (h *Handler) ListFiles(c *gin.Context) {
	user, ok := getAuthUser(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
		return
	}
	files, err := h.chatStore.GetUserFiles(c.Request.Context(), user.ID)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

type deleteFileRequest struct {
	Filename string `json:"filename"`
}

// DeleteFile removes one file and its chunks.
func (h *Handler) DeleteFile(c *gin.Context) {
	user, ok := getAuthUser(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
		return
	}
	var req deleteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Filename == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "filename is required", err))
		return
	}
	if err := h.ingestion.DeleteFile(c.Request.Context(), user.ID, req.Filename); err != nil {
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

// ClearAllFiles removes every file the caller has uploaded.
func (h *Handler) ClearAllFiles(c *gin.Context) {
	user, ok := getAuthUser(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
		return
	}
	if err := h.ingestion.ClearAllFiles(c.Request.Context(), user.ID); err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "clear_failed", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ViewFile returns a pre-signed URL for one of the caller's files.
func (h *Handler) ViewFile(c *gin.Context) {
	user, ok := getAuthUser(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing session", nil))
		return
	}
	filename := c.Param("filename")
	rec, found, err := h.chatStore.GetUserFile(c.Request.Context(), user.ID, filename)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "fetch_failed", errMessage(err), err))
		return
	}
	if !found {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "not_found", "file not found", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": rec.BlobURL})
}
