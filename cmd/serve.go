package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"GeoMatch-App/internal/handler"
)

const shutdownTimeout = 10 * time.Second

// serveCmd HTTPサーバーを起動する
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTPサーバーを起動する",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, backend, err := openService(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("⚠️ バックエンドのクローズに失敗", zap.Error(err))
		}
	}()

	if err := backend.HealthCheck(ctx); err != nil {
		return fmt.Errorf("バックエンドのヘルスチェック失敗: %w", err)
	}
	logger.Info("✅ バックエンド接続成功", zap.String("backend", backend.Name))

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.NewLocationHandler(service, backend, logger), logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 GeoMatch-App server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("🛑 shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
