// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/goodsign/monday"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/podplay/internal/api/connect"
	"github.com/osa030/podplay/internal/api/web"
	"github.com/osa030/podplay/internal/app/pages"
	"github.com/osa030/podplay/internal/app/provider"
	"github.com/osa030/podplay/internal/app/session"
	"github.com/osa030/podplay/internal/infra/config"
	"github.com/osa030/podplay/internal/infra/logger"
)

// expireInterval is how often idle sessions are collected.
const expireInterval = time.Minute

var (
	app        = kingpin.New("podplay-server", "podplay podcast server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-providers command
	listProvidersCmd = app.Command("list-providers", "List configured episode providers and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Handle list-providers command
	if command == listProvidersCmd.FullCommand() {
		if err := printProviders(cfg); err != nil {
			zlog.Error().Msgf("Failed to list providers: %v", err)
			os.Exit(1)
		}
		return
	}

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// Create episode providers
	chain, err := provider.NewChainFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create episode providers: %w", err)
	}

	// Create page renderer and prerender the newest episodes
	renderer, err := pages.New(chain, pages.Config{
		SiteTitle:      cfg.Site.Title,
		Locale:         monday.Locale(cfg.Site.Locale),
		HomeLimit:      cfg.Pages.HomeLimit,
		PrerenderCount: cfg.Pages.PrerenderCount,
		Revalidate:     cfg.Revalidate(),
	})
	if err != nil {
		return fmt.Errorf("failed to create page renderer: %w", err)
	}
	if err := renderer.Prerender(ctx); err != nil {
		// Pages are rendered on demand instead
		zlog.Warn().Msgf("Failed to prerender pages: %v", err)
	}

	assets, err := pages.NewAssets()
	if err != nil {
		return fmt.Errorf("failed to load static assets: %w", err)
	}

	// Create session manager
	sessionMgr := session.NewManager(session.Config{
		IdleTimeout: cfg.IdleTimeout(),
	})

	// Create HTTP mux
	mux := http.NewServeMux()

	// Register pages and the player socket
	web.New(renderer, assets, sessionMgr, chain, web.Config{
		CookieName:   cfg.Session.CookieName,
		CookieMaxAge: cfg.IdleTimeout(),
		SecureCookie: isHTTPS(cfg.Server.BaseURL),
		HomeLimit:    cfg.Pages.HomeLimit,
	}).Register(mux)

	// Register RPC service
	playerPath, playerHandler := apiconnect.NewPlayerServiceHandler(
		apiconnect.NewPlayerService(sessionMgr, chain),
		connect.WithInterceptors(apiconnect.NewSessionInterceptor(sessionMgr)),
	)
	mux.Handle(playerPath, playerHandler)

	// Determine server address
	serverAddr := cfg.Server.Addr
	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	// Expire idle sessions
	expireCtx, stopExpire := context.WithCancel(ctx)
	defer stopExpire()
	go expireSessions(expireCtx, sessionMgr)

	// Start server
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s base_url=%s", serverAddr, cfg.Server.BaseURL)
		// Signal that we're about to start listening
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close sessions first to terminate active sockets and streams
	stopExpire()
	sessionMgr.CloseAll()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	renderer.Wait()

	zlog.Info().Msg("Server stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// expireSessions closes idle sessions until ctx is done.
func expireSessions(ctx context.Context, sessionMgr *session.Manager) {
	ticker := time.NewTicker(expireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessionMgr.ExpireIdle()
		}
	}
}

// printProviders prints the configured episode providers.
func printProviders(cfg *config.Config) error {
	chain, err := provider.NewChainFromConfig(context.Background(), cfg)
	if err != nil {
		return err
	}

	fmt.Println("Episode Providers:")
	for i, pm := range chain.Providers() {
		fmt.Printf("  %d. %-30s [type: %s]\n", i+1, pm.DisplayName, pm.Provider.Name())
	}
	return nil
}

// isHTTPS reports whether the public base URL uses TLS.
func isHTTPS(baseURL string) bool {
	return strings.HasPrefix(baseURL, "https://")
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
