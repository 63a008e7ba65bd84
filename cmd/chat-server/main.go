package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"direct-chat/internal/config"
	"direct-chat/internal/domain"
	"direct-chat/internal/handler"
	"direct-chat/internal/media"
	"direct-chat/internal/middleware"
	"direct-chat/internal/observability"
	"direct-chat/internal/presence"
	"direct-chat/internal/repository/mongodb"
	"direct-chat/internal/repository/postgres"
	"direct-chat/internal/service"
	"direct-chat/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	observability.InitLogger(logLevel, logFormat)

	slog.Info("starting chat server")

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(connCtx); err != nil {
		slog.Error("database ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	mongoClient, err := config.NewMongoConnection(connCtx, cfg.MongoURL)
	if err != nil {
		slog.Error("failed to connect to mongodb", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			slog.Error("mongodb disconnect failed", slog.String("error", err.Error()))
		}
	}()
	slog.Info("connected to mongodb")

	mediaStore, err := media.NewMinioStore(connCtx,
		cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioBucket, cfg.MediaBaseURL, cfg.MinioUseSSL)
	if err != nil {
		slog.Error("failed to initialize media store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("media store ready", slog.String("bucket", cfg.MinioBucket))

	userRepo, err := postgres.NewUserRepository(db)
	if err != nil {
		slog.Error("failed to prepare user repository", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sessionRepo, err := postgres.NewSessionRepository(db)
	if err != nil {
		slog.Error("failed to prepare session repository", slog.String("error", err.Error()))
		os.Exit(1)
	}

	messageRepo := mongodb.NewMessageRepository(mongoClient.Database(cfg.MongoDatabase))
	if err := messageRepo.EnsureIndexes(connCtx); err != nil {
		slog.Error("failed to ensure message indexes", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry := presence.NewRegistry()
	gateway := websocket.NewGateway(registry)

	gatewayCtx, gatewayCancel := context.WithCancel(context.Background())
	defer gatewayCancel()
	go func() {
		if err := gateway.Run(gatewayCtx); err != nil && err != context.Canceled {
			slog.Error("gateway error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("realtime gateway started")

	authService := service.NewAuthService(userRepo, sessionRepo, mediaStore)
	messageService := service.NewMessageService(messageRepo, gateway)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startSessionCleanup(ctx, sessionRepo)
	slog.Info("session cleanup task started")

	authHandler := handler.NewAuthHandler(authService)
	messageHandler := handler.NewMessageHandler(messageService, authService, mediaStore)
	wsHandler := handler.NewWebSocketHandler(gateway, authService)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogContext)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.AllowedOrigins)))
	r.Use(middleware.Metrics())
	// Request validation against api/openapi.yaml, active outside production
	r.Use(middleware.OpenAPIValidator(nil))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(db, mongoClient))
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	r.Route("/api/v1", func(r chi.Router) {
		authLimiter := middleware.NewRateLimiter(5, 10)
		apiLimiter := middleware.NewRateLimiter(20, 50)

		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware())
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessionRepo))
			r.Use(apiLimiter.Middleware())

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)
			r.Put("/auth/update-profile", authHandler.UpdateProfile)

			r.Get("/messages/users", messageHandler.GetSidebarUsers)
			r.Get("/messages/{id}", messageHandler.List)
			r.Post("/messages/send/{id}", messageHandler.Send)
			r.Put("/messages/update/{messageId}", messageHandler.Update)
			r.Delete("/messages/delete/{messageId}", messageHandler.Delete)
		})
	})

	// The auth middleware also accepts ?token= so websocket dialers can
	// authenticate without a cookie jar
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sessionRepo))
		r.Get("/ws", wsHandler.HandleConnection)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("chat server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	gatewayCancel()

	time.Sleep(100 * time.Millisecond)

	slog.Info("server stopped gracefully")
}

// startSessionCleanup runs a background task to delete expired sessions
func startSessionCleanup(ctx context.Context, repo domain.SessionRepository) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping session cleanup task")
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := repo.DeleteExpired(cleanupCtx)
			if err != nil {
				slog.Error("session cleanup failed", slog.String("error", err.Error()))
			} else {
				slog.Info("session cleanup completed",
					slog.Int64("sessions_deleted", count))
			}
			cancel()
		}
	}
}
