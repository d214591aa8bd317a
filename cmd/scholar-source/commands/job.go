package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/scholarsrc/scholar-source/pkg/models"
)

// JobSubmitAction は探索ジョブを投入して完了まで待機するコマンドのアクション
func JobSubmitAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	inputs := models.CourseInputs{
		UniversityName: cmd.String("university"),
		CourseName:     cmd.String("course"),
		CourseURL:      cmd.String("course-url"),
		Textbook:       cmd.String("textbook"),
		TopicsList:     cmd.String("topics"),
		BookTitle:      cmd.String("book-title"),
		BookAuthor:     cmd.String("book-author"),
		ISBN:           cmd.String("isbn"),
		BookURL:        cmd.String("book-url"),
		ExcludedSites:  cmd.String("excluded-sites"),
		TargetedSites:  cmd.String("targeted-sites"),
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	id, err := appCtx.Jobs.Submit(ctx, inputs, cmd.Bool("bypass-cache"))
	if err != nil {
		return fmt.Errorf("ジョブの投入に失敗: %w", err)
	}

	slog.Info("ジョブを投入しました", "jobID", id)

	if !cmd.Bool("wait") {
		fmt.Println(id)
		return nil
	}

	return waitAndPrint(ctx, appCtx, id)
}

// JobStatusAction はジョブの状態を表示するコマンドのアクション
func JobStatusAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("不正なジョブID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	j, err := appCtx.Jobs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("ジョブの取得に失敗: %w", err)
	}

	return printJSON(j)
}

// JobCancelAction はジョブをキャンセルするコマンドのアクション
func JobCancelAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("不正なジョブID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	status, err := appCtx.Jobs.Cancel(ctx, id)
	if err != nil {
		return fmt.Errorf("ジョブのキャンセルに失敗: %w", err)
	}

	slog.Info("キャンセル処理が完了しました", "jobID", id, "status", status)
	return nil
}

// waitAndPrint はジョブの終端状態をポーリングで待って結果を出力する
func waitAndPrint(ctx context.Context, appCtx *AppContext, id uuid.UUID) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		j, err := appCtx.Jobs.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("ジョブの取得に失敗: %w", err)
		}

		if !j.Status.IsTerminal() {
			if j.StatusMessage != nil {
				slog.Info("進捗", "jobID", id, "status", j.Status, "message", *j.StatusMessage)
			}
			continue
		}

		return printJSON(j)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
