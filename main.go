package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subscription-tracker/config"
	"subscription-tracker/database"
	authapi "subscription-tracker/internal/api/auth"
	routes "subscription-tracker/internal/app/http"
	"subscription-tracker/internal/app/http/middleware"
	"subscription-tracker/internal/infra/mail"
	"subscription-tracker/internal/infra/session"
	"subscription-tracker/internal/infra/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	cfg := config.MustLoad()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBURL, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Info("database ready")

	var denylist session.Denylist = session.NewMemoryDenylist()
	if cfg.RedisURL != "" {
		rd, err := session.NewRedisDenylist(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rd.Close()
		denylist = rd
		logger.Info("using redis session denylist")
	}
	tokens := session.NewManager(cfg.JWTSecret, cfg.JWTTTL, denylist)

	mailer, err := mail.New(cfg.Mail, logger)
	if err != nil {
		log.Fatalf("Failed to configure mail: %v", err)
	}

	var r *gin.Engine
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		r = gin.New()
		r.Use(gin.Recovery(), middleware.RequestLogger(logger))
	} else {
		r = gin.Default()
	}

	// CORS before routes
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:            db,
		Tokens:        tokens,
		Subscriptions: store.NewSubscriptionStore(db),
		Auth: authapi.NewHandler(authapi.Deps{
			DB:          db,
			Tokens:      tokens,
			Mailer:      mailer,
			Logger:      logger,
			PublicURL:   cfg.PublicURL,
			FrontendURL: cfg.FrontendURL,
			Google:      cfg.Google,
		}),
		Logger: logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
}
