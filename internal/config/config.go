// Package config アプリケーション設定の読み込み
//
// 優先順位: 環境変数 > YAMLファイル（CONFIG_FILE） > デフォルト値。
// .env があれば godotenv で環境変数に読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// バックエンド種別
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendSupabase  = "supabase"
)

// AppConfig アプリケーション全体の設定
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Location LocationConfig `yaml:"location"`
	LogLevel string         `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// ServerConfig HTTPサーバー設定
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// StoreConfig 位置ストア / セルインデックスのバックエンド設定
type StoreConfig struct {
	Backend          string        `yaml:"backend" validate:"required,oneof=memory redis postgres firestore supabase"`
	RedisAddr        string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword    string        `yaml:"redis_password"`
	RedisDB          int           `yaml:"redis_db" validate:"min=0"`
	DatabaseURL      string        `yaml:"database_url" validate:"required_if=Backend postgres"`
	FirestoreProject string        `yaml:"firestore_project_id" validate:"required_if=Backend firestore"`
	CredentialsFile  string        `yaml:"credentials_file"`
	SupabaseURL      string        `yaml:"supabase_url" validate:"required_if=Backend supabase"`
	SupabaseAnonKey  string        `yaml:"supabase_anon_key" validate:"required_if=Backend supabase"`
	JanitorInterval  time.Duration `yaml:"janitor_interval" validate:"min=0"`
}

// LocationConfig 位置サービスの調整値
type LocationConfig struct {
	TTL                  time.Duration `yaml:"ttl" validate:"gt=0"`
	OperationTimeout     time.Duration `yaml:"operation_timeout" validate:"gt=0"`
	HydrationConcurrency int           `yaml:"hydration_concurrency" validate:"min=1,max=256"`
}

// Default デフォルト設定
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{Port: 8080},
		Store: StoreConfig{
			Backend:         BackendMemory,
			JanitorInterval: 5 * time.Second,
		},
		Location: LocationConfig{
			TTL:                  20 * time.Second,
			OperationTimeout:     3 * time.Second,
			HydrationConcurrency: 8,
		},
		LogLevel: "info",
	}
}

// Load 設定を読み込み、検証する。path が空なら CONFIG_FILE を参照する
func Load(path string) (AppConfig, error) {
	// .env が無い環境（CI、Cloud Run）でも続行する
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return AppConfig{}, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return AppConfig{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("設定の検証に失敗: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be an integer: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	setDuration := func(key string, dst *time.Duration) error {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s must be a duration (e.g. 20s): %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	setString("STORE_BACKEND", &cfg.Store.Backend)
	setString("REDIS_ADDR", &cfg.Store.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.Store.RedisPassword)
	setString("DATABASE_URL", &cfg.Store.DatabaseURL)
	setString("FIRESTORE_PROJECT_ID", &cfg.Store.FirestoreProject)
	setString("GOOGLE_APPLICATION_CREDENTIALS", &cfg.Store.CredentialsFile)
	setString("SUPABASE_URL", &cfg.Store.SupabaseURL)
	setString("SUPABASE_ANON_KEY", &cfg.Store.SupabaseAnonKey)
	setString("LOG_LEVEL", &cfg.LogLevel)

	for key, dst := range map[string]*int{
		"PORT":                  &cfg.Server.Port,
		"REDIS_DB":              &cfg.Store.RedisDB,
		"HYDRATION_CONCURRENCY": &cfg.Location.HydrationConcurrency,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*time.Duration{
		"LOCATION_TTL":      &cfg.Location.TTL,
		"OPERATION_TIMEOUT": &cfg.Location.OperationTimeout,
		"JANITOR_INTERVAL":  &cfg.Store.JanitorInterval,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}
	return nil
}
