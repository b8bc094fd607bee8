package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"toll-verify-service/internal/config"
	"toll-verify-service/internal/db"
	httphandler "toll-verify-service/internal/http"
	"toll-verify-service/internal/http/middleware"
	"toll-verify-service/internal/recognition"
	"toll-verify-service/internal/repository"
	"toll-verify-service/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg.Log.Level)

	gdb, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}()

	registryRepo := repository.NewRegistryRepository(gdb)
	logRepo := repository.NewLogRepository(gdb)
	recognizer := recognition.NewClient(cfg.Recognition, log)
	verifyService := service.NewVerifyService(registryRepo, logRepo, recognizer, cfg.Anomaly, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	authMiddleware := middleware.Auth(cfg.Auth.JWTSecret)
	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("no JWT secret configured, log endpoints are unprotected")
		authMiddleware = middleware.Passthrough()
	}

	handler := httphandler.NewHandler(verifyService, recognizer, cfg, log)
	handler.Register(router, authMiddleware)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting toll-verify-service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
