// Package main wires the session module for a desktop/kiosk embedding
// of the dashboard: backend client, durable token store, session
// manager, collaborators, and the loopback server that completes the
// TaipeiPass login.
//
// main's only job is configuration and wiring — every behavior lives in
// the internal packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/tuic/dashboard-session/internal/api"
	"github.com/tuic/dashboard-session/internal/auth"
	"github.com/tuic/dashboard-session/internal/callback"
	"github.com/tuic/dashboard-session/internal/content"
	"github.com/tuic/dashboard-session/internal/model"
	"github.com/tuic/dashboard-session/internal/session"
	"github.com/tuic/dashboard-session/internal/store"
	"github.com/tuic/dashboard-session/internal/viewpoint"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === CONFIGURATION ===
	baseURL := envOr("API_BASE_URL", "https://citydashboard.taipei/api/v1")
	dbPath := envOr("DB_PATH", "data/session.db")
	callbackPort := envIntOr("CALLBACK_PORT", 8085, logger)

	clientID := os.Getenv("TAIPEIPASS_CLIENT_ID")
	authURL := envOr("TAIPEIPASS_AUTH_URL", "https://id.taipei/tpcd/oauth/authorize")
	redirectURL := envOr("TAIPEIPASS_REDIRECT_URL",
		"http://127.0.0.1:"+strconv.Itoa(callbackPort)+"/auth/taipeipass/callback")

	// === DURABLE TOKEN STORE ===
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.Error("creating data directory failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tokens, err := store.OpenSQLite(dbPath)
	if err != nil {
		logger.Error("opening token store failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer tokens.Close()

	// === BACKEND CLIENT + SESSION MANAGER ===
	// The client reads the bearer token through the manager, and the
	// manager drives the client — the closure breaks the cycle.
	var manager *session.Manager
	backend := api.New(baseURL, func() string {
		if manager == nil {
			return ""
		}
		return manager.AccessKey()
	})

	manager = session.New(session.Config{
		Backend:     backend,
		Store:       tokens,
		Navigator:   &logNavigator{logger: logger},
		Notifier:    &logNotifier{logger: logger},
		Environment: probeEnvironment,
		Logger:      logger,
	})

	// === COLLABORATORS ===
	content.NewService(backend, logger).Wire(manager)
	viewpoint.NewService(backend, logger).Wire(manager)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === BOOTSTRAP ===
	if err := manager.InitialChecks(ctx); err != nil {
		// A stale stored token is survivable: the embedding keeps
		// running anonymously and the user logs in again.
		logger.Warn("initial checks failed", slog.String("error", err.Error()))
	}

	// === FEDERATED LOGIN RECEIVER ===
	provider := auth.NewTaipeiPassProvider(clientID, authURL, redirectURL)
	srv := callback.New(callbackPort, manager, provider, logger)

	logger.Info("callback server listening",
		slog.Int("port", callbackPort),
		slog.String("login", "http://127.0.0.1:"+strconv.Itoa(callbackPort)+"/auth/taipeipass/login"),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Error("callback server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// logNavigator satisfies session.Navigator for an embedding without a
// real router: navigation intents are logged for the host UI to act on.
type logNavigator struct {
	logger *slog.Logger
}

func (n *logNavigator) Replace(path string) {
	n.logger.Info("navigate", slog.String("path", path))
}

func (n *logNavigator) Reload() {
	n.logger.Info("reload requested")
}

// logNotifier satisfies session.Notifier.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Notify(level, message string) {
	n.logger.Info("notification", slog.String("level", level), slog.String("message", message))
}

// probeEnvironment reads the device signals. A headless embedding has
// no touch or screen APIs, so it reports a desktop-class environment
// unless overridden for testing.
func probeEnvironment() model.Environment {
	env := model.Environment{
		FinePointer: true,
		ScreenWidth: 1920,
	}
	if v := os.Getenv("SCREEN_WIDTH"); v != "" {
		if w, err := strconv.Atoi(v); err == nil {
			env.ScreenWidth = w
		}
	}
	return env
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int, logger *slog.Logger) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Error("invalid integer env value", slog.String("key", key), slog.String("value", v))
		os.Exit(1)
	}
	return n
}
