package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/scholarsrc/scholar-source/internal/interface/httpapi"
)

// ServerStartAction はジョブ API サーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	api := httpapi.NewServer(appCtx.Jobs, appCtx.Limiter)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", appCtx.Config.Server.Port),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("APIサーバを起動します", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("APIサーバの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	// 新規リクエストの受付を止め、実行中ジョブの終端書き込みを待つ
	slog.Info("APIサーバを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("APIサーバの停止に失敗: %w", err)
	}

	return nil
}
