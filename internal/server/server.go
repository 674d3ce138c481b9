package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mingle-gateway/config"
	"mingle-gateway/internal/auth"
	"mingle-gateway/internal/gateway"
	"mingle-gateway/internal/handler"
	"mingle-gateway/internal/middleware"
	"mingle-gateway/internal/ratelimit"
	"mingle-gateway/internal/transport/httpdto"
)

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *zap.Logger
}

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	WebSocket    *gateway.WebSocketHandler
	Message      *handler.MessageHandler
	Group        *handler.GroupHandler
	Notification *handler.NotificationHandler
	Upload       *handler.UploadHandler
	Presence     *handler.PresenceHandler
}

// HealthCheck reports dependency liveness for the health endpoint.
type HealthCheck func(ctx context.Context) error

func New(cfg *config.Config, logger *zap.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: logger,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, verifier *auth.Verifier, limiter *ratelimit.Limiter, health HealthCheck) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	ws := s.engine.Group("/ws")
	if limiter != nil {
		ws.Use(middleware.HandshakeRateLimitMiddleware(limiter))
	}
	ws.GET("", handlers.WebSocket.Handle)

	authed := s.engine.Group("/v1", middleware.AuthMiddleware(verifier))

	messages := authed.Group("/messages")
	{
		send := messages.Group("")
		if limiter != nil {
			send.Use(middleware.MessageRateLimitMiddleware(limiter))
		}
		send.POST("", handlers.Message.Send)

		messages.POST("/:id/reactions", handlers.Message.React)
		messages.DELETE("/:id", handlers.Message.DeleteForMe)
		messages.DELETE("/:id/everyone", handlers.Message.DeleteForEveryone)
	}

	authed.GET("/conversations/:id/messages", handlers.Message.History)

	groups := authed.Group("/groups")
	{
		groups.POST("", handlers.Group.Create)
		groups.PATCH("/:id", handlers.Group.Update)
		groups.POST("/:id/members", handlers.Group.AddMembers)
		groups.DELETE("/:id/members", handlers.Group.RemoveMembers)
		groups.POST("/:id/admin", handlers.Group.TransferAdmin)
		groups.POST("/:id/leave", handlers.Group.Leave)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.POST("", handlers.Notification.Create)
		notifications.GET("", handlers.Notification.List)
		notifications.POST("/:id/read", handlers.Notification.MarkRead)
	}

	authed.POST("/uploads/presign", handlers.Upload.Presign)
	authed.GET("/presence/:id", handlers.Presence.Status)
}

// Start serves until SIGINT/SIGTERM, then drains with a 5s deadline.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("starting server", zap.String("port", s.config.AppPort))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	s.logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}

	s.logger.Info("server stopped gracefully")
	return nil
}
