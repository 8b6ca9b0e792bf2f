package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ragviet/ragviet-service/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		errorHandlingMiddleware(handler.logger),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	api := router.Group("/api/v1")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", handler.Register)
			authRoutes.POST("/login", handler.Login)
			authRoutes.POST("/logout", handler.Logout)
			authRoutes.POST("/forgot-password", handler.ForgotPassword)
			authRoutes.POST("/reset-password", handler.ResetPassword)
			authRoutes.POST("/verify-session", handler.VerifySession)
		}

		protected := api.Group("/")
		protected.Use(authMiddleware(handler.authSvc))
		{
			chat := protected.Group("/chat")
			{
				chat.POST("/send", handler.ChatSend)
				chat.GET("/sessions", handler.ListChatSessions)
				chat.POST("/sessions/create", handler.CreateChatSession)
				chat.GET("/history/:id", handler.ChatHistory)
			}

			files := protected.Group("/files")
			{
				files.POST("/upload", handler.UploadFiles)
				files.GET("/list", handler.ListFiles)
				files.POST("/delete", handler.DeleteFile)
				files.POST("/clear-all", handler.ClearAllFiles)
				files.GET("/view/:filename", handler.ViewFile)
			}
		}

		admin := api.Group("/admin")
		admin.Use(adminMiddleware(handler.adminKey))
		{
			admin.GET("/files/list", handler.AdminListFiles)
			admin.POST("/files/delete", handler.AdminDeleteFile)
			admin.GET("/chat/sessions", handler.AdminListChatSessions)
			admin.POST("/users/delete", handler.AdminDeleteUser)
			admin.POST("/users/set-active", handler.AdminSetUserActive)
		}
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
