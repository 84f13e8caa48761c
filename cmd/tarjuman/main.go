package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tarjuman/tarjuman/config"
	"github.com/tarjuman/tarjuman/errors"
	"github.com/tarjuman/tarjuman/server"
	"github.com/tarjuman/tarjuman/server/ratelimit"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "v0.1.0"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
	validate   bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "tarjuman",
		Short: "Urdu to English translation relay",
		Long: `tarjuman serves POST /api/translate, which turns Urdu text into a casual
and a professional English rendering with a single call to a language model.

Settings come from the config file, a .env file and environment variables
(OPENAI_API_KEY, OPENAI_MODEL, OPENAI_BASE_URL, PORT, LOG_LEVEL, REDIS_ADDR).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing file is fine unless the user asked for it by name.
			required := cmd.Flags().Changed("config")
			cfg, err := config.LoadFile(opts.configPath, required)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to load config: %v\n", err)
				return err
			}

			if opts.validate {
				fmt.Fprintln(out, "Configuration is valid")
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts.configPath, cfg)
		},
	}
	cmd.SetOut(out)
	cmd.SetVersionTemplate("tarjuman {{.Version}}\n")

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to configuration file")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "Validate configuration and exit")

	return cmd
}

func run(ctx context.Context, configPath string, cfg *config.Config) error {
	logger, level, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Critical error: Failed to create logger: %v\n", err)
		return err
	}
	defer logger.Sync() //nolint:errcheck

	errors.SetLogger(logger)

	srvOpts := []server.Option{server.WithLogLevel(level)}

	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.New(cfg.RateLimit)
		if err != nil {
			logger.Error("Rate limiter initialization failed", zap.Error(err))
			return err
		}
		checkLimiter(ctx, limiter, logger)
		srvOpts = append(srvOpts, server.WithLimiter(limiter))
	}

	if _, statErr := os.Stat(configPath); statErr == nil {
		watcher, err := config.NewConfigWatcher(configPath, cfg, logger)
		if err != nil {
			logger.Warn("Config hot reload disabled", zap.Error(err), zap.String("config_path", configPath))
		} else {
			defer watcher.Close()
			srvOpts = append(srvOpts, server.WithWatcher(watcher))
		}
	}

	srv, err := server.NewServer(cfg, logger, srvOpts...)
	if err != nil {
		logger.Error("Server initialization failed",
			zap.Error(err),
			zap.String("config_path", configPath),
		)
		return err
	}

	logger.Info("Starting tarjuman", zap.String("version", Version), zap.Int("port", cfg.Server.Port))
	if err := srv.Start(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// checkLimiter warns when a shared limiter backend is unreachable. The
// server still starts; requests pass unthrottled until it comes back.
func checkLimiter(ctx context.Context, limiter ratelimit.Limiter, logger *zap.Logger) {
	p, ok := limiter.(interface{ Ping(context.Context) error })
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		logger.Warn("Rate limit backend unreachable, failing open", zap.Error(err))
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	level := zap.NewAtomicLevelAt(lvl)

	var zcfg zap.Config
	if cfg.Format == "text" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, level, err
	}
	return logger, level, nil
}
