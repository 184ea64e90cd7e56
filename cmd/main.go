package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"GeoMatch-App/internal/application"
	"GeoMatch-App/internal/config"
	"GeoMatch-App/internal/logging"
	"GeoMatch-App/internal/repository"
)

var (
	// グローバルフラグ
	verbose    bool
	configPath string
	backendArg string

	cfg    config.AppConfig
	logger *zap.Logger
)

// rootCmd ルートコマンド
var rootCmd = &cobra.Command{
	Use:   "geomatch",
	Short: "GeoMatch-App - ドライバーと乗客の近傍マッチング",
	Long: `ドライバーと乗客の最新位置をgeohashセル単位で索引し、
同じセルにいる相手側のエージェントを検索するサービスです。

位置とセルのメンバーシップは20秒で失効します。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("設定の読み込みに失敗: %w", err)
		}
		if backendArg != "" {
			cfg.Store.Backend = backendArg
		}
		logger, err = logging.New(cfg.LogLevel, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "デバッグログを出力する")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML設定ファイル（未指定時は CONFIG_FILE）")
	rootCmd.PersistentFlags().StringVar(&backendArg, "backend", "", "ストアのバックエンド (memory, redis, postgres, firestore, supabase)")

	rootCmd.AddCommand(serveCmd, updateCmd, nearbyCmd, newIDCmd, cellCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openService 設定されたバックエンドで LocationService を組み立てる
func openService(ctx context.Context) (application.LocationService, *repository.Backend, error) {
	backend, err := repository.NewBackend(ctx, cfg.Store, cfg.Location.OperationTimeout, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("バックエンドの初期化に失敗: %w", err)
	}
	service := application.NewLocationService(backend.Positions, backend.Cells, application.Options{
		TTL:                  cfg.Location.TTL,
		OperationTimeout:     cfg.Location.OperationTimeout,
		HydrationConcurrency: cfg.Location.HydrationConcurrency,
	}, logger)
	return service, backend, nil
}
