package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/scholarsrc/scholar-source/internal/core/agentconfig"
	"github.com/scholarsrc/scholar-source/internal/core/cache"
	"github.com/scholarsrc/scholar-source/internal/core/job"
	"github.com/scholarsrc/scholar-source/internal/core/ratelimit"
	"github.com/scholarsrc/scholar-source/internal/infra/openai"
	"github.com/scholarsrc/scholar-source/internal/platform/logger"
	"github.com/scholarsrc/scholar-source/pkg/config"
	"github.com/scholarsrc/scholar-source/pkg/db"
	"github.com/scholarsrc/scholar-source/pkg/repository"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Database  *db.DB
	JobRepo   *repository.JobRepository
	CacheRepo *repository.CacheRepository
	Loader    *agentconfig.Loader
	Cache     *cache.Store
	Jobs      *job.Service
	Limiter   *ratelimit.Limiter
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger.New(logger.DefaultConfig())

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: int32(cfg.Database.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := repository.EnsureSchema(ctx, database.Pool); err != nil {
		database.Close()
		return nil, fmt.Errorf("スキーマの初期化に失敗: %w", err)
	}

	loader := agentconfig.NewLoader(cfg.AgentsConfigPath, cfg.TasksConfigPath)

	cacheRepo := repository.NewCacheRepository(database.Pool)
	cacheStore := cache.New(
		cacheRepo,
		loader,
		time.Duration(cfg.Cache.AnalysisTTLDays)*24*time.Hour,
		time.Duration(cfg.Cache.FullTTLDays)*24*time.Hour,
	)

	llmClient, err := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("OpenAIクライアントの初期化に失敗: %w", err)
	}
	pipeline := openai.NewPipeline(llmClient, loader, time.Duration(cfg.OpenAI.StageTimeoutSeconds)*time.Second)

	jobRepo := repository.NewJobRepository(database.Pool)
	jobs := job.NewService(jobRepo, pipeline, cacheStore, cfg.Jobs.Workers)

	return &AppContext{
		Config:    cfg,
		Database:  database,
		JobRepo:   jobRepo,
		CacheRepo: cacheRepo,
		Loader:    loader,
		Cache:     cacheStore,
		Jobs:      jobs,
		Limiter:   newLimiter(cfg, database),
	}, nil
}

// newLimiter は設定に応じたカウンタストアでレート制限を構築する
// "postgres" を指定すると複数インスタンス間でカウンタが共有される
func newLimiter(cfg *config.Config, database *db.DB) *ratelimit.Limiter {
	var store ratelimit.CounterStore
	if cfg.RateLimit.Store == "postgres" {
		store = repository.NewRateCounterRepository(database.Pool)
	} else {
		store = ratelimit.NewMemoryStore()
	}

	windows := []ratelimit.Window{
		{Limit: cfg.RateLimit.PerMinute, Per: time.Minute},
		{Limit: cfg.RateLimit.PerHour, Per: time.Hour},
	}

	return ratelimit.New(store, windows, cfg.RateLimit.FailClosed)
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Jobs != nil {
		ac.Jobs.Close()
	}
	if ac.Database != nil {
		ac.Database.Close()
	}
}
