// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/linkshelf/internal/api"
	"github.com/starford/linkshelf/internal/auth"
	"github.com/starford/linkshelf/internal/bookmarks"
	"github.com/starford/linkshelf/internal/feed"
	"github.com/starford/linkshelf/internal/logger"
	"github.com/starford/linkshelf/internal/mcpserver"
	"github.com/starford/linkshelf/internal/session"
	"github.com/starford/linkshelf/internal/sse"
	"github.com/starford/linkshelf/internal/store"
)

var errConfigRequired = errors.New("config is required")

const (
	shutdownTimeout = 10 * time.Second
	janitorInterval = time.Hour
	sseHeartbeat    = 25 * time.Second
)

// OpenStore opens the configured SQLite database, creating its directory if needed.
func OpenStore(ctx context.Context, cfg *Config) (*store.DB, error) {
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	return store.Open(ctx, cfg.SQLite.Path)
}

// openSessions returns the configured session backend and a cleanup func.
func openSessions(ctx context.Context, cfg *Config, db *store.DB, log logger.Logger) (session.Store, func(), error) {
	if cfg.Sessions.Backend != SessionBackendRedis {
		return session.NewSQLStore(db), func() {}, nil
	}
	client, err := session.ConnectRedis(ctx, session.RedisOptions{
		Addr:     cfg.Sessions.Redis.Addr,
		Username: cfg.Sessions.Redis.Username,
		Password: cfg.Sessions.Redis.Password,
		DB:       cfg.Sessions.Redis.DB,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return session.NewRedisStore(client), func() { _ = client.Close() }, nil
}

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	log := app.logger
	defer func() { _ = log.Sync() }()

	log.Info("Configuration loaded",
		logger.String("http_address", cfg.App.HTTP.Address()),
		logger.String("origin", cfg.App.HTTP.Origin()),
		logger.String("env", cfg.App.Env),
		logger.String("sqlite_path", cfg.SQLite.Path),
		logger.String("sessions_backend", cfg.Sessions.Backend),
		logger.String("log_level", cfg.App.LogLevel),
		logger.String("version", app.version))

	db, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	sessions, closeSessions, err := openSessions(ctx, cfg, db, log)
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}
	defer closeSessions()

	authSvc := auth.NewService(db, sessions, auth.Options{
		Secret:     []byte(cfg.Auth.Secret),
		SessionTTL: cfg.Auth.SessionTTL,
		CodeTTL:    cfg.Auth.CodeTTL,
	}, log.With(logger.String("component", "auth")))
	bookmarkSvc := bookmarks.NewService(db)

	broker := sse.NewBroker(sseHeartbeat, authSvc, log.With(logger.String("component", "sse")))
	defer broker.Close()
	authSvc.OnRevoke(broker.RevokeSession)

	proxies, err := api.ParseTrustedProxies(cfg.App.HTTP.TrustedProxies)
	if err != nil {
		return fmt.Errorf("init http: %w", err)
	}

	router := api.NewRouter(api.Deps{
		Auth:           authSvc,
		Bookmarks:      bookmarkSvc,
		Events:         broker,
		Ready:          db.Ping,
		TrustedProxies: proxies,
		Cookie:         api.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure},
		Origin:         cfg.App.HTTP.Origin(),
		Development:    cfg.App.Development(),
		LoginLimit: api.RateLimitConfig{
			Burst:      cfg.Auth.LoginBurst,
			PerMinute:  cfg.Auth.LoginRefillPerMin,
			MaxClients: 10000,
		},
		Log: log.With(logger.String("component", "http")),
	})

	// No WriteTimeout: event streams stay open for the life of the tab.
	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Tail the changelog into the broker.
	g.Go(func() error {
		return feed.Watch(gCtx, db, feed.Options{
			PollInterval: cfg.Feed.PollInterval,
			Debounce:     cfg.Feed.Debounce,
			Retention:    cfg.Feed.Retention,
		}, log.With(logger.String("component", "feed")), broker.PublishChange)
	})

	// Expire stale login codes and sessions.
	g.Go(func() error {
		runJanitor(gCtx, db, log)
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		log.Info("Starting HTTP server", logger.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			log.Info("Received shutdown signal", logger.String("signal", sig.String()))
		case <-gCtx.Done():
			log.Info("Context cancelled, initiating shutdown")
		}

		log.Info("Shutting down server...")

		// Closing the broker ends open event streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", logger.Error(err))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		log.Error("Application error", logger.Error(err))
		return err
	}

	log.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the feed and janitor stop with the server.
var errShutdown = errors.New("shutdown")

func runJanitor(ctx context.Context, db *store.DB, log logger.Logger) {
	t := time.NewTicker(janitorInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := time.Now()
			if n, err := db.PruneLoginCodes(ctx, now); err != nil {
				log.Warn("prune login codes failed", logger.Error(err))
			} else if n > 0 {
				log.Debug("pruned login codes", logger.Int64("rows", n))
			}
			if n, err := db.PruneSessions(ctx, now); err != nil {
				log.Warn("prune sessions failed", logger.Error(err))
			} else if n > 0 {
				log.Debug("pruned sessions", logger.Int64("rows", n))
			}
		}
	}
}

// RunMCP serves the bookmark tools over stdio for the configured owner.
// Logs go to stderr; stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	if cfg.MCP.OwnerEmail == "" {
		return fmt.Errorf("mcp.owner_email is required")
	}

	db, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	owner, err := db.EnsureUser(ctx, cfg.MCP.OwnerEmail)
	if err != nil {
		return fmt.Errorf("resolve mcp owner: %w", err)
	}
	app.logger.Info("MCP server starting", logger.String("owner", owner.Email))

	return mcpserver.New(bookmarks.NewService(db), owner.ID, app.version).ServeStdio()
}
