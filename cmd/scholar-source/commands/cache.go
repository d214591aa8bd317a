package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/scholarsrc/scholar-source/pkg/models"
)

// CacheStatsAction はキャッシュの統計を表示するコマンドのアクション
func CacheStatsAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	configHash, err := appCtx.Loader.ConfigHash()
	if err != nil {
		return fmt.Errorf("設定ハッシュの計算に失敗: %w", err)
	}

	stats, err := appCtx.CacheRepo.Stats(ctx, configHash)
	if err != nil {
		return fmt.Errorf("キャッシュ統計の取得に失敗: %w", err)
	}

	return printJSON(stats)
}

// CachePurgeAction は無効なキャッシュエントリを削除するコマンドのアクション
// 現在の設定ハッシュと一致しないエントリと、TTL を超過したエントリを削除する
func CachePurgeAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	configHash, err := appCtx.Loader.ConfigHash()
	if err != nil {
		return fmt.Errorf("設定ハッシュの計算に失敗: %w", err)
	}

	stale, err := appCtx.CacheRepo.PurgeStale(ctx, configHash)
	if err != nil {
		return fmt.Errorf("無効エントリの削除に失敗: %w", err)
	}

	now := time.Now().UTC()
	analysisCutoff := now.Add(-time.Duration(appCtx.Config.Cache.AnalysisTTLDays) * 24 * time.Hour)
	expiredAnalysis, err := appCtx.CacheRepo.PurgeExpired(ctx, models.CacheTypeAnalysis, analysisCutoff)
	if err != nil {
		return fmt.Errorf("期限切れエントリの削除に失敗: %w", err)
	}

	fullCutoff := now.Add(-time.Duration(appCtx.Config.Cache.FullTTLDays) * 24 * time.Hour)
	expiredFull, err := appCtx.CacheRepo.PurgeExpired(ctx, models.CacheTypeFull, fullCutoff)
	if err != nil {
		return fmt.Errorf("期限切れエントリの削除に失敗: %w", err)
	}

	slog.Info("キャッシュを整理しました",
		"staleDeleted", stale,
		"expiredAnalysisDeleted", expiredAnalysis,
		"expiredFullDeleted", expiredFull,
	)
	return nil
}
