package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"mentorjournal/internal/app"
	"mentorjournal/internal/config"
	"mentorjournal/internal/handlers"
	mw "mentorjournal/internal/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()
	if err := a.Migrate(ctx); err != nil {
		logger.Fatal("failed migrations", zap.Error(err))
	}

	authMW := mw.NewAuthMiddleware([]byte(cfg.JWTSecret))
	api := &handlers.API{
		Auth:          handlers.NewAuthHandler(a.Store, a.Relationship, authMW, logger),
		Users:         handlers.NewUserHandler(a.Store, logger),
		Journal:       handlers.NewJournalHandler(a.Journal, logger),
		Forms:         handlers.NewFormHandler(a.Store, logger),
		Requests:      handlers.NewRequestHandler(a.Relationship, a.Store, logger),
		Notifications: handlers.NewNotificationHandler(a.Store, logger),
		Admin:         handlers.NewAdminHandler(a.Store, a.Relationship, a.Digests, logger),
		Applications:  a.Relationship,
		AuthMW:        authMW,
		Logger:        logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.ZapRequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Route("/api", api.Mount)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// let in-flight notification fan-out finish before the store closes
	if err := a.Journal.Wait(shutdownCtx); err != nil {
		logger.Warn("pending dispatches abandoned", zap.Error(err))
	}
	logger.Info("server stopped")
}
