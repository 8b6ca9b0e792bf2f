package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ragviet/ragviet-service/internal/domain/auth"
	"github.com/ragviet/ragviet-service/internal/domain/rag"
	"github.com/ragviet/ragviet-service/internal/infra/blobstore"
	"github.com/ragviet/ragviet-service/internal/infra/chatstore"
	"github.com/ragviet/ragviet-service/internal/infra/config"
	"github.com/ragviet/ragviet-service/internal/infra/embedder"
	"github.com/ragviet/ragviet-service/internal/infra/reranker"
	"github.com/ragviet/ragviet-service/internal/infra/vectorstore"
)

type fakeLLM struct{ reply string }

func (f *fakeLLM) Complete(context.Context, string, string, int) (string, error) {
	return f.reply, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store := chatstore.NewMemory()
	blob := blobstore.NewMemory()
	emb := embedder.NewDeterministic(16)
	vs := vectorstore.New(emb, nil, nil)
	rrk := reranker.NewLexical(true)
	filter := rag.NewVietnameseFilter()
	llm := &fakeLLM{reply: "Theo tài liệu, quy định như sau: mục A."}
	pdf := rag.NewPDFProcessor(fakePageExtractor{}, 400, 100, nil)

	answerer := rag.NewAnswerer(vs, rrk, filter, llm, store, rag.ModelPolicy{Primary: "gpt-4o-mini"}, nil)
	ingestion := rag.NewIngestionCoordinator(pdf, vs, blob, store, 2, nil)
	authSvc := auth.NewService(auth.Config{SessionTTL: time.Hour}, store, nil)

	return NewHandler(authSvc, answerer, ingestion, store, "admin-secret", nil)
}

type fakePageExtractor struct{}

func (fakePageExtractor) ExtractPages(data []byte) ([]rag.PageText, bool, error) {
	return []rag.PageText{{PageNumber: 1, Text: string(data)}}, true, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := newTestHandler(t)
	router := gin.New()
	router.Use(errorHandlingMiddleware(handler.logger))

	api := router.Group("/api/v1")
	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", handler.Register)
	authRoutes.POST("/login", handler.Login)
	authRoutes.POST("/logout", handler.Logout)
	authRoutes.POST("/forgot-password", handler.ForgotPassword)
	authRoutes.POST("/reset-password", handler.ResetPassword)
	authRoutes.POST("/verify-session", handler.VerifySession)

	protected := api.Group("/")
	protected.Use(authMiddleware(handler.authSvc))
	chat := protected.Group("/chat")
	chat.POST("/send", handler.ChatSend)
	chat.GET("/sessions", handler.ListChatSessions)
	chat.POST("/sessions/create", handler.CreateChatSession)
	chat.GET("/history/:id", handler.ChatHistory)

	files := protected.Group("/files")
	files.POST("/upload", handler.UploadFiles)
	files.GET("/list", handler.ListFiles)
	files.POST("/delete", handler.DeleteFile)
	files.POST("/clear-all", handler.ClearAllFiles)
	files.GET("/view/:filename", handler.ViewFile)

	admin := api.Group("/admin")
	admin.Use(adminMiddleware(handler.adminKey))
	admin.GET("/files/list", handler.AdminListFiles)
	admin.POST("/files/delete", handler.AdminDeleteFile)
	admin.POST("/users/delete", handler.AdminDeleteUser)
	admin.POST("/users/set-active", handler.AdminSetUserActive)

	return router
}

func doJSON(router *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func registerAndLogin(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()
	body := `{"username":"an","email":"` + email + `","password":"abcdef","confirmPassword":"abcdef"}`
	resp := doJSON(router, http.MethodPost, "/api/v1/auth/register", body, "")
	require.Equal(t, http.StatusCreated, resp.Code)

	loginBody := `{"email":"` + email + `","password":"abcdef"}`
	resp = doJSON(router, http.MethodPost, "/api/v1/auth/login", loginBody, "")
	require.Equal(t, http.StatusOK, resp.Code)

	var payload struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.SessionID)
	return payload.SessionID
}

func TestRegisterLoginAndVerifySession(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "a@example.com")

	resp := doJSON(router, http.MethodPost, "/api/v1/auth/verify-session", `{}`, token)
	require.Equal(t, http.StatusOK, resp.Code)

	var payload struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.True(t, payload.Valid)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	router := newTestRouter(t)
	_ = doJSON(router, http.MethodPost, "/api/v1/auth/register", `{"username":"an","email":"b@example.com","password":"abcdef","confirmPassword":"abcdef"}`, "")

	resp := doJSON(router, http.MethodPost, "/api/v1/auth/login", `{"email":"b@example.com","password":"wrongpass"}`, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestChatSendRequiresSession(t *testing.T) {
	router := newTestRouter(t)
	resp := doJSON(router, http.MethodPost, "/api/v1/chat/send", `{"message":"chao"}`, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestChatSendReturnsGreetingShortCircuit(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "c@example.com")

	resp := doJSON(router, http.MethodPost, "/api/v1/chat/send", `{"message":"chao"}`, token)
	require.Equal(t, http.StatusOK, resp.Code)

	var payload struct {
		Response      string `json:"response"`
		ChatSessionID string `json:"chat_session_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Response)
	require.NotEmpty(t, payload.ChatSessionID)
}

func TestChatHistoryRejectsOtherUsersSession(t *testing.T) {
	router := newTestRouter(t)
	tokenA := registerAndLogin(t, router, "owner@example.com")
	tokenB := registerAndLogin(t, router, "intruder@example.com")

	sendResp := doJSON(router, http.MethodPost, "/api/v1/chat/send", `{"message":"chao"}`, tokenA)
	require.Equal(t, http.StatusOK, sendResp.Code)
	var sendPayload struct {
		ChatSessionID string `json:"chat_session_id"`
	}
	require.NoError(t, json.Unmarshal(sendResp.Body.Bytes(), &sendPayload))
	require.NotEmpty(t, sendPayload.ChatSessionID)

	ownResp := doJSON(router, http.MethodGet, "/api/v1/chat/history/"+sendPayload.ChatSessionID, "", tokenA)
	require.Equal(t, http.StatusOK, ownResp.Code)

	intruderResp := doJSON(router, http.MethodGet, "/api/v1/chat/history/"+sendPayload.ChatSessionID, "", tokenB)
	require.Equal(t, http.StatusNotFound, intruderResp.Code)
}

func TestUploadListAndDeleteFile(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "d@example.com")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", "a.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("Điều 1. Nội dung quy định."))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	listResp := doJSON(router, http.MethodGet, "/api/v1/files/list", "", token)
	require.Equal(t, http.StatusOK, listResp.Code)
	var listPayload struct {
		Files []struct {
			Filename string `json:"Filename"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(listResp.Body.Bytes(), &listPayload))
	require.Len(t, listPayload.Files, 1)

	deleteResp := doJSON(router, http.MethodPost, "/api/v1/files/delete", `{"filename":"a.pdf"}`, token)
	require.Equal(t, http.StatusOK, deleteResp.Code)
}

func TestAdminSetUserActiveBlocksLoginAndSession(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "f@example.com")

	verify := doJSON(router, http.MethodPost, "/api/v1/auth/verify-session", `{}`, token)
	require.Equal(t, http.StatusOK, verify.Code)
	var verifyPayload struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(verify.Body.Bytes(), &verifyPayload))
	userID := verifyPayload.User.ID
	require.NotEmpty(t, userID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/set-active", bytes.NewBufferString(`{"user_id":"`+userID+`","active":false}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", "admin-secret")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	verify = doJSON(router, http.MethodPost, "/api/v1/auth/verify-session", `{}`, token)
	require.Equal(t, http.StatusOK, verify.Code)
	var disabledPayload struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(verify.Body.Bytes(), &disabledPayload))
	require.False(t, disabledPayload.Valid)

	chatSend := doJSON(router, http.MethodPost, "/api/v1/chat/send", `{"message":"chao"}`, token)
	require.Equal(t, http.StatusForbidden, chatSend.Code)

	login := doJSON(router, http.MethodPost, "/api/v1/auth/login", `{"email":"f@example.com","password":"abcdef"}`, "")
	require.Equal(t, http.StatusForbidden, login.Code)
}

func TestAdminDeleteUserCascades(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndLogin(t, router, "e@example.com")

	resp := doJSON(router, http.MethodPost, "/api/v1/chat/sessions/create", `{}`, token)
	require.Equal(t, http.StatusCreated, resp.Code)

	var payload struct {
		Session struct {
			UserID string `json:"UserID"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/delete", bytes.NewBufferString(`{"user_id":"`+payload.Session.UserID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", "admin-secret")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	verify := doJSON(router, http.MethodPost, "/api/v1/auth/verify-session", `{}`, token)
	require.Equal(t, http.StatusOK, verify.Code)
	var verifyPayload struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(verify.Body.Bytes(), &verifyPayload))
	require.False(t, verifyPayload.Valid)
}

func TestAdminRoutesRequireAdminKey(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/files/list?user_id=x", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusForbidden, recorder.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/files/list?user_id=x", nil)
	req.Header.Set("X-Admin-Key", "admin-secret")
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
}
