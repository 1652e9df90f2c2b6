package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/breadwatch/internal/api"
	"github.com/vietddude/breadwatch/internal/control"
	"github.com/vietddude/breadwatch/internal/core/config"
)

const shutdownTimeout = 15 * time.Second

var (
	cfgPath string
	isDebug bool
	address string
)

var rootCmd = &cobra.Command{
	Use:          "breadwatch",
	Short:        "Bread token dashboard service",
	Long:         `Breadwatch tracks the Bread token for one wallet: mint history, balance, pending bread and transfers.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Breadwatch failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().StringVar(&address, "address", "", "wallet address to connect at startup")
}

// loadConfig reads .env and the config file, then installs the logger.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	level := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	return cfg, nil
}

// withApp starts an App with no default identity, connects addr and runs fn.
// The App is stopped on every path.
func withApp(timeout time.Duration, addr string, fn func(ctx context.Context, app *control.App, cfg *config.AppConfig) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Wallet.DefaultAddress = ""

	app, err := control.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	if _, err := app.Connect(ctx, addr); err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	return fn(ctx, app, cfg)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if address != "" {
		cfg.Wallet.DefaultAddress = address
	}

	app, err := control.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	server := api.NewServer(
		api.Config{Port: cfg.Server.Port},
		app,
		app.Submitter(),
		app.Pool(),
		app.Health(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start(ctx) }()

	slog.Info("Breadwatch started", "config", cfgPath, "port", cfg.Server.Port)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case runErr = <-serverErr:
		slog.Error("API server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Warn("Error stopping API server", "error", err)
	}
	if err := app.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("stop app: %w", err))
	}
	return runErr
}
