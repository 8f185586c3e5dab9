package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"greenbite/internal/config"
	"greenbite/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and MCP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "Host address")
	serveCmd.Flags().Int("port", 0, "Port for the HTTP API")
	serveCmd.Flags().String("log-level", "", "Log level: quiet|standard|debug")
	serveCmd.Flags().String("store-dsn", "", "SQLite DSN for the demo store")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.log-level", serveCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("store.dsn", serveCmd.Flags().Lookup("store-dsn"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logs := newLoggers(cfg.Server.LogLevel, cmd.ErrOrStderr())
	if cfg.Server.LogLevel != config.LogDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app, err := buildApp(ctx, cfg, logs)
	if err != nil {
		return err
	}
	defer app.Close()

	srv, err := server.NewGreenBiteServer(&server.Config{
		Addr:           cfg.Server.Addr(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		CORSOrigins:    cfg.Server.CORSOrigins,
		AccessLog:      cfg.Server.LogLevel == config.LogDebug,
		Version:        cmd.Root().Version,
	}, app.Pipeline, app.Store, logs.server)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logs.server.Printf("classifier backend %s, upload limit %s", cfg.Classifier.Backend, humanize.IBytes(uint64(cfg.Server.MaxUploadBytes)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		logs.server.Printf("received shutdown signal")
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logs.server.Printf("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return srv.Stop(shutdownCtx)
}
