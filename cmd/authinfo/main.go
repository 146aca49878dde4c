package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"authinfo/internal/app"
	"authinfo/internal/authinfo"
	"authinfo/internal/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type options struct {
	configFile string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCommand(os.Stdout).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}

	serve := func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), opts)
	}

	root := &cobra.Command{
		Use:          "authinfo",
		Short:        "Serve OAuth2 client settings to front-end applications",
		Version:      version,
		SilenceUsage: true,
		RunE:         serve,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (embedded defaults when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			Args:  cobra.NoArgs,
			RunE:  serve,
		},
		newIssuerCommand(opts),
	)

	return root
}

func newIssuerCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "issuer <token-uri>",
		Short: "Print the issuer derived from a token endpoint URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rules []authinfo.IssuerRule
			if opts.configFile != "" {
				cfg, err := config.NewLoader(opts.configFile).Load()
				if err != nil {
					return err
				}
				rules = cfg.OAuth2.IssuerRules
			}

			resolver, err := authinfo.NewResolver(rules)
			if err != nil {
				return err
			}

			issuer, provider := resolver.Issuer(args[0])
			if provider == "" {
				provider = "none"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "issuer:   %s\nprovider: %s\n", issuer, provider)
			return nil
		},
	}
}

func runServe(ctx context.Context, opts *options) error {
	logger, err := newLogger(os.Stdout, opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(opts.configFile).Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := app.NewBuilder(cfg, logger).
		WithConfigPath(opts.configFile).
		WithVersion(version).
		Build(ctx)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start server", "error", err)
		return err
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server", "error", err)
		return err
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, ok := logLevels[strings.ToLower(level)]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
