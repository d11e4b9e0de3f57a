package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mgriffin/linkpulse/internal/clicks"
	"github.com/mgriffin/linkpulse/internal/config"
	"github.com/mgriffin/linkpulse/internal/ratelimit"
	"github.com/mgriffin/linkpulse/internal/repository/sqlite"
	"github.com/mgriffin/linkpulse/internal/service"
	"github.com/mgriffin/linkpulse/internal/shortener"
	"github.com/mgriffin/linkpulse/internal/transport/client"
	httpTransport "github.com/mgriffin/linkpulse/internal/transport/http"
)

var rootCmd = &cobra.Command{
	Use:   "linkpulse",
	Short: "A URL shortening service written in Go",
	Long:  "A URL shortening service with per-caller rate limiting and click analytics, backed by SQLite",
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the link service",
	RunE:  runServer,
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Client commands for interacting with the server",
}

var createCmd = &cobra.Command{
	Use:   "create [URL]",
	Short: "Create a short link",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateLink,
}

var getCmd = &cobra.Command{
	Use:   "get [SHORT_CODE]",
	Short: "Get information about a short link",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetLink,
}

var statsCmd = &cobra.Command{
	Use:   "stats [SHORT_CODE]",
	Short: "Show the analytics report for a short link",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show your current rate limit standing",
	RunE:  runLimits,
}

func init() {
	// Server command flags
	serverCmd.Flags().StringP("port", "p", "8080", "Server port")
	serverCmd.Flags().String("server-url", "http://localhost:8080", "Server URL (for short link construction)")
	serverCmd.Flags().String("db-path", "linkpulse.db", "Database file path")

	// Privacy configuration flags
	serverCmd.Flags().String("identity-salt", "", "Salt for hashing caller identities (required)")
	serverCmd.Flags().String("ip-salt", "", "Salt for hashing caller IPs (required)")

	// Click recording flags
	serverCmd.Flags().Duration("click-retention", 90*24*time.Hour, "How long click events stay queryable")
	serverCmd.Flags().Int("click-queue-size", 1024, "Click event queue capacity")
	serverCmd.Flags().Int("click-workers", 4, "Click event worker count")

	// Analytics flags
	serverCmd.Flags().Int("analytics-max-events", 10000, "Maximum events scanned per analytics report")

	// Link validation flags
	serverCmd.Flags().Bool("restrict-private-hosts", false, "Reject destination URLs pointing at private or loopback hosts")

	// Logging configuration flags
	serverCmd.Flags().BoolP("verbose", "v", false, "Log every request, not just errors")
	serverCmd.Flags().Bool("json-logs", false, "Emit JSON logs instead of console output")

	// Client command flags
	clientCmd.PersistentFlags().StringP("server-url", "u", "http://localhost:8080", "Server URL")
	createCmd.Flags().String("custom-code", "", "Custom short code")
	createCmd.Flags().Int64("expires-in", 0, "Link lifetime in seconds (0 = never expires)")
	statsCmd.Flags().String("period", "24h", "Analytics period (1h, 24h, 7d, 30d)")
	limitsCmd.Flags().String("action", "redirect", "Action to query (create, redirect, analytics)")

	// Add subcommands
	clientCmd.AddCommand(createCmd, getCmd, statsCmd, limitsCmd)
	rootCmd.AddCommand(serverCmd, clientCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Get configuration from CLI flags
	port, _ := cmd.Flags().GetString("port")
	serverURL, _ := cmd.Flags().GetString("server-url")
	dbPath, _ := cmd.Flags().GetString("db-path")
	identitySalt, _ := cmd.Flags().GetString("identity-salt")
	ipSalt, _ := cmd.Flags().GetString("ip-salt")
	clickRetention, _ := cmd.Flags().GetDuration("click-retention")
	clickQueueSize, _ := cmd.Flags().GetInt("click-queue-size")
	clickWorkers, _ := cmd.Flags().GetInt("click-workers")
	maxEvents, _ := cmd.Flags().GetInt("analytics-max-events")
	restrictPrivateHosts, _ := cmd.Flags().GetBool("restrict-private-hosts")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")

	clicksCfg := clicks.DefaultConfig()
	clicksCfg.Retention = clickRetention
	clicksCfg.QueueSize = clickQueueSize
	clicksCfg.Workers = clickWorkers

	analyticsCfg := service.DefaultAnalyticsConfig()
	analyticsCfg.MaxEvents = maxEvents

	// Create configuration
	cfg, err := config.New(port, serverURL, dbPath, identitySalt, ipSalt,
		verbose, jsonLogs, restrictPrivateHosts, clicksCfg, analyticsCfg)
	if err != nil {
		return fmt.Errorf("failed to create configuration: %w", err)
	}

	log := newLogger(cfg.Logging)
	log.Info().Str("port", cfg.Server.Port).Str("db", cfg.Database.Path).Msg("starting link service")

	// Initialize database
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing store")
		}
	}()

	// Start the click recorder before the server accepts traffic
	recorder := clicks.NewRecorder(store, store, cfg.Clicks, log)
	recorder.Start()
	defer recorder.Stop()

	// Wire services
	generator := shortener.NewRandomGenerator()
	links := service.NewLinkService(store, generator, cfg.Links, log)
	resolver := service.NewResolverService(store, recorder, log)
	analytics := service.NewAnalyticsService(store, store, cfg.Analytics, log)
	limiter := ratelimit.New(store, cfg.Privacy.IdentitySalt, log)

	// Metrics registry with process and Go runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := httpTransport.NewMetrics(registry)

	// Create and start HTTP server
	handler := httpTransport.NewHandler(links, resolver, analytics, limiter, metrics, cfg.Server.ServerURL, log)
	server := httpTransport.NewServer(handler, metrics, registry, cfg.Server.Port, cfg.Logging.Verbose, log)

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during server shutdown")
		}
	}

	log.Info().Msg("server stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}

	if cfg.JSON {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
}

func runCreateLink(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server-url")
	customCode, _ := cmd.Flags().GetString("custom-code")
	expiresIn, _ := cmd.Flags().GetInt64("expires-in")
	c := client.NewClient(serverURL)
	commands := client.NewCommands(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return commands.Create(ctx, args[0], customCode, expiresIn)
}

func runGetLink(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server-url")
	c := client.NewClient(serverURL)
	commands := client.NewCommands(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return commands.Get(ctx, args[0])
}

func runStats(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server-url")
	period, _ := cmd.Flags().GetString("period")
	c := client.NewClient(serverURL)
	commands := client.NewCommands(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return commands.Stats(ctx, args[0], period)
}

func runLimits(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server-url")
	action, _ := cmd.Flags().GetString("action")
	c := client.NewClient(serverURL)
	commands := client.NewCommands(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return commands.Limits(ctx, action)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
