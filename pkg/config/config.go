package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// HTTPサーバ設定
	Server ServerConfig

	// OpenAI設定（エージェントパイプライン用）
	OpenAI OpenAIConfig

	// キャッシュTTL設定
	Cache CacheConfig

	// レート制限設定
	RateLimit RateLimitConfig

	// ジョブ実行設定
	Jobs JobsConfig

	// エージェント/タスク定義ファイル
	AgentsConfigPath string
	TasksConfigPath  string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// ServerConfig はHTTPサーバ設定
type ServerConfig struct {
	Port int
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey              string
	Model               string
	StageTimeoutSeconds int // パイプライン1ステージあたりのタイムアウト
}

// CacheConfig はキャッシュ層ごとのTTL設定
// analysis 層（コース分析）は変化が少ないため長め、full 層（結果全体、非推奨）は
// 新しいリソースの公開を取りこぼさないよう短めがデフォルトです
type CacheConfig struct {
	AnalysisTTLDays int
	FullTTLDays     int
}

// RateLimitConfig は投稿レート制限の設定
// FailClosed=false（デフォルト）の場合、カウンタストア障害時は許可側に倒します
type RateLimitConfig struct {
	PerMinute  int
	PerHour    int
	FailClosed bool
	Store      string // "memory" or "postgres"
}

// JobsConfig はジョブ実行の設定
type JobsConfig struct {
	Workers int // 同時実行数の上限
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "scholarsource"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "scholarsource"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			Model:               getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			StageTimeoutSeconds: getEnvAsInt("PIPELINE_STAGE_TIMEOUT_SECONDS", 120),
		},
		Cache: CacheConfig{
			AnalysisTTLDays: getEnvAsInt("COURSE_ANALYSIS_TTL_DAYS", 30),
			FullTTLDays:     getEnvAsInt("RESOURCE_RESULTS_TTL_DAYS", 7),
		},
		RateLimit: RateLimitConfig{
			PerMinute:  getEnvAsInt("RATE_LIMIT_PER_MINUTE", 2),
			PerHour:    getEnvAsInt("RATE_LIMIT_PER_HOUR", 10),
			FailClosed: getEnvAsBool("RATE_LIMIT_FAIL_CLOSED", false),
			Store:      getEnv("RATE_LIMIT_STORE", "memory"),
		},
		Jobs: JobsConfig{
			Workers: getEnvAsInt("JOB_WORKERS", 4),
		},
		AgentsConfigPath: getEnv("AGENTS_CONFIG_PATH", "config/agents.yaml"),
		TasksConfigPath:  getEnv("TASKS_CONFIG_PATH", "config/tasks.yaml"),
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
