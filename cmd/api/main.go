package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/planextra/backend/internal/config"
	"github.com/planextra/backend/internal/handler"
	realtimeHandler "github.com/planextra/backend/internal/handler/realtime"
	authService "github.com/planextra/backend/internal/service/auth"
	"github.com/planextra/backend/internal/service/authz"
	"github.com/planextra/backend/internal/service/presence"
	realtimeService "github.com/planextra/backend/internal/service/realtime"
	"github.com/planextra/backend/internal/service/session"
	taskService "github.com/planextra/backend/internal/service/task"
	workspaceService "github.com/planextra/backend/internal/service/workspace"
	"github.com/planextra/backend/internal/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded, continuing with system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := sqlite.Open(cfg.Store.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	log.Info().Str("path", cfg.Store.DatabasePath).Msg("database ready")

	auth := authService.NewService(db, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	gate := authz.NewGate(auth, db, db)
	workspaces := workspaceService.NewService(db)
	tasks := taskService.NewService(db, db, db)

	hub := realtimeService.NewHub(session.NewRegistry(), presence.NewTracker(), gate, log.Logger)

	router := handler.NewRouter(handler.Deps{
		Auth:         auth,
		Gate:         gate,
		Workspaces:   workspaces,
		Tasks:        tasks,
		Realtime:     realtimeHandler.New(hub, cfg.Auth.HandshakeTimeout),
		ClientOrigin: cfg.Server.ClientOrigin,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.Server, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", serverCfg.Addr).Msg("planextra backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
