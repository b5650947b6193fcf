package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xthestreams/current-rms-watcher/internal/risk"
	"github.com/xthestreams/current-rms-watcher/internal/server"
	"github.com/xthestreams/current-rms-watcher/internal/webhook"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver and dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client := initClient()
		if client == nil {
			zap.L().Warn("no Current RMS credentials; risk endpoints and id-only webhooks are disabled")
		}

		settings := risk.NewSettingsCache(st, risk.WithTTL(cfg.Settings.CacheTTL))
		processor := webhook.NewProcessor(st, client)

		srvOpts := []server.Option{
			server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		}
		if cfg.Webhook.Secret != "" {
			srvOpts = append(srvOpts, server.WithWebhookSecret(cfg.Webhook.Secret))
		}
		srv := server.New(st, client, settings, processor, srvOpts...)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
