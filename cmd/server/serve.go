package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/config"
	"github.com/GriffinCanCode/tracectx/internal/infrastructure/server"
)

var (
	configPath string
	servePort  string
	serveDev   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, gRPC and queue servers",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate configuration and print the effective values",
	RunE:  runConfig,
}

func init() {
	for _, cmd := range []*cobra.Command{serveCmd, configCmd} {
		cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml or .toml); environment is used when empty")
	}
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "HTTP port, overrides the configured port")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "Development logging (console encoder, debug level)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Server.Port = servePort
	}
	if serveDev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "http:      %s:%s\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(out, "grpc:      enabled=%t port=%s\n", cfg.GRPC.Enabled, cfg.GRPC.Port)
	fmt.Fprintf(out, "tracing:   enabled=%t engine=%s service=%s\n", cfg.Tracing.Enabled, cfg.Tracing.Engine, cfg.Tracing.ServiceName)
	fmt.Fprintf(out, "queue:     workers=%d capacity=%d compress_above=%d\n", cfg.Queue.Workers, cfg.Queue.Capacity, cfg.Queue.CompressAbove)
	fmt.Fprintf(out, "payments:  url=%q retries=%d\n", cfg.Payments.URL, cfg.Payments.Retries)
	fmt.Fprintf(out, "ratelimit: enabled=%t rps=%d burst=%d\n", cfg.RateLimit.Enabled, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	fmt.Fprintf(out, "logging:   level=%s development=%t\n", cfg.Logging.Level, cfg.Logging.Development)
	return nil
}
