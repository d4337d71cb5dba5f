package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayush/skill-swap/internal/admin"
	"github.com/ayush/skill-swap/internal/auth"
	"github.com/ayush/skill-swap/internal/config"
	"github.com/ayush/skill-swap/internal/middleware"
	"github.com/ayush/skill-swap/internal/rating"
	"github.com/ayush/skill-swap/internal/store"
	"github.com/ayush/skill-swap/internal/swap"
	"github.com/ayush/skill-swap/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	if !cfg.IsProduction() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	}
	slog.SetDefault(slog.New(handler))

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// ── Store ────────────────────────────────────────────────
	backend, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(context.Background()); err != nil {
			slog.Warn("close store", "error", err)
		}
	}()
	slog.Info("store connected", "driver", cfg.StoreDriver)

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return err
	}
	defer rdb.Close()
	versions := auth.NewTokenVersions(rdb)

	// ── MinIO ────────────────────────────────────────────────
	var photos users.PhotoStore
	if cfg.MinioAccessKey != "" {
		minioStore, err := store.NewMinioStore(
			ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
		)
		if err != nil {
			return err
		}
		photos = minioStore
	} else {
		slog.Warn("MINIO_ACCESS_KEY not set, profile photo uploads disabled")
	}

	// ── Services ─────────────────────────────────────────────
	authSvc := auth.NewService(backend, versions, auth.Options{
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: cfg.BcryptCost,
		Admin:      auth.AdminCredentials{Email: cfg.AdminEmail, Password: cfg.AdminPassword},
	})
	swapSvc := swap.NewService(backend, backend, rating.NewAggregator(backend), cfg.SwapStrictSkills)
	userSvc := users.NewService(backend, photos, versions)

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(authSvc)
	swapHandler := swap.NewHandler(swapSvc)
	userHandler := users.NewHandler(userSvc)
	adminHandler := admin.NewHandler(userSvc, swapSvc)
	requireAuth := middleware.RequireAuth(authSvc)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Origins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.With(requireAuth).Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/me", authHandler.Me)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Get("/", userHandler.List)
		r.Get("/{id}/photo", userHandler.Photo)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile", userHandler.Profile)
			r.Put("/profile", userHandler.UpdateProfile)
			r.Put("/profile/photo", userHandler.UploadPhoto)
		})
	})

	r.Route("/api/swaps", func(r chi.Router) {
		r.Use(requireAuth)
		swapHandler.Routes(r)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(requireAuth, middleware.RequireAdmin)
		adminHandler.Routes(r)
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("backend listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
