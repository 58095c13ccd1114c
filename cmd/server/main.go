package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/codehuddle/backend/internal/activity"
	"github.com/codehuddle/backend/internal/api"
	"github.com/codehuddle/backend/internal/collab"
	"github.com/codehuddle/backend/internal/config"
	"github.com/codehuddle/backend/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.LogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	store, err := activity.NewSQLite(cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize activity store")
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		logrus.WithError(err).Fatal("Activity store health check failed")
	}

	recorder := activity.NewRecorder(store, cfg.RecorderQueueSize)
	recorder.Start()
	defer recorder.Stop()

	retention := activity.NewRetentionSweeper(store, activity.RetentionConfig{
		Interval: cfg.RetentionSweepInterval,
		MaxAge:   cfg.ActivityRetention,
	})
	retention.Start()
	defer retention.Stop()

	registry := collab.NewRegistry()
	hub := ws.NewHub()
	wsHandler := ws.NewHandler(hub, registry, store, recorder, cfg.HistoryLimit)

	typingSweeper := collab.NewTypingSweeper(registry, collab.SweeperConfig{
		Interval: cfg.TypingSweepInterval,
		TTL:      cfg.TypingTTL,
	}, wsHandler.NotifyTypingStopped)
	typingSweeper.Start()
	defer typingSweeper.Stop()

	apiHandler := api.New(registry, store, recorder)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	apiHandler.Routes(r)
	r.Get("/ws", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.WithField("addr", srv.Addr).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	stop()

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
