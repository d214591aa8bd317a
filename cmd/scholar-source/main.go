package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/scholarsrc/scholar-source/cmd/scholar-source/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}

	app := &cli.Command{
		Name:  "scholar-source",
		Usage: "大学コース・教科書向け学習リソース探索システム",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "API サーバ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "start",
						Usage:  "ジョブ API サーバを起動",
						Flags:  []cli.Flag{envFlag},
						Action: commands.ServerStartAction,
					},
				},
			},
			{
				Name:  "job",
				Usage: "ジョブ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "submit",
						Usage: "リソース探索ジョブを投入",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{Name: "university", Usage: "大学名"},
							&cli.StringFlag{Name: "course", Usage: "コース名"},
							&cli.StringFlag{Name: "course-url", Usage: "コースページの URL"},
							&cli.StringFlag{Name: "textbook", Usage: "教科書（自由記述）"},
							&cli.StringFlag{Name: "topics", Usage: "トピックのカンマ区切りリスト"},
							&cli.StringFlag{Name: "book-title", Usage: "書籍タイトル"},
							&cli.StringFlag{Name: "book-author", Usage: "書籍著者"},
							&cli.StringFlag{Name: "isbn", Usage: "ISBN"},
							&cli.StringFlag{Name: "book-url", Usage: "書籍ページの URL"},
							&cli.StringFlag{Name: "excluded-sites", Usage: "除外サイトのカンマ区切りリスト"},
							&cli.StringFlag{Name: "targeted-sites", Usage: "優先サイトのカンマ区切りリスト"},
							&cli.BoolFlag{Name: "bypass-cache", Usage: "キャッシュを使わず再分析する"},
							&cli.BoolFlag{Name: "wait", Usage: "ジョブ完了まで待機して結果を出力する"},
						},
						Action: commands.JobSubmitAction,
					},
					{
						Name:  "status",
						Usage: "ジョブの状態を表示",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{Name: "id", Usage: "ジョブID", Required: true},
						},
						Action: commands.JobStatusAction,
					},
					{
						Name:  "cancel",
						Usage: "ジョブをキャンセル",
						Flags: []cli.Flag{
							envFlag,
							&cli.StringFlag{Name: "id", Usage: "ジョブID", Required: true},
						},
						Action: commands.JobCancelAction,
					},
				},
			},
			{
				Name:  "cache",
				Usage: "キャッシュ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "stats",
						Usage:  "キャッシュ統計を表示",
						Flags:  []cli.Flag{envFlag},
						Action: commands.CacheStatsAction,
					},
					{
						Name:   "purge",
						Usage:  "無効・期限切れのキャッシュエントリを削除",
						Flags:  []cli.Flag{envFlag},
						Action: commands.CachePurgeAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
