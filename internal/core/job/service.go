package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scholarsrc/scholar-source/internal/core/report"
	"github.com/scholarsrc/scholar-source/pkg/models"
)

// ユーザー向けステータスメッセージ（API レスポンスにそのまま露出する）
const (
	msgInitializing = "Initializing agents..."
	msgCacheHit     = "Using cached course analysis, discovering resources..."
	msgAnalyzing    = "Analyzing course and book structure..."
	msgParsing      = "Parsing results..."
	msgCompleted    = "Resource discovery completed successfully"
	msgCancelled    = "Job cancelled by user"
	msgFailed       = "Job failed"
	msgAccessError  = "Failed to access course or book resources"

	errCancelledByUser = "Job was cancelled before completion"
)

// dbWriteTimeout はジョブ状態の永続化1回あたりのタイムアウト
// 書き込みはジョブコンテキストから切り離して行うため、キャンセル後も
// 終端状態の記録が失われません
const dbWriteTimeout = 10 * time.Second

// errStatusConflict は状態機械が遷移を拒否したことを示します（後退・終端からの遷移）
// 実行ループはこれを「ジョブは既に決着済み」として扱い、静かに停止します
var errStatusConflict = errors.New("job status transition rejected")

// leadingErrorPattern はレポート冒頭の "ERROR: ..." 行からメッセージを取り出します
var leadingErrorPattern = regexp.MustCompile(`ERROR:\s*([^\n]+)`)

// Service はリソース探索ジョブのオーケストレータです
//
// Submit はジョブを永続化して即座に ID を返し、実処理はワーカーセマフォの
// 空きを待つバックグラウンドゴルーチンで行います。状態遷移はすべて
// mu の下で「現在状態の読み取り → CanTransitionTo 検査 → 書き込み」を
// 不可分に行うため、Cancel と実行ループが競合しても後退遷移は起きません
type Service struct {
	repo     Repository
	pipeline Pipeline
	cache    AnalysisCache

	sem chan struct{}

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc

	wg sync.WaitGroup
}

// NewService は新しい Service を作成します
// workers は同時に実行されるパイプラインの最大数（超過分は queued で待機）
func NewService(repo Repository, pipeline Pipeline, cache AnalysisCache, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		repo:     repo,
		pipeline: pipeline,
		cache:    cache,
		sem:      make(chan struct{}, workers),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// Submit は探索ジョブを受け付けます
// 入力を正規化して検証し、pending 状態で永続化した後、処理ゴルーチンを
// 起動して即座にジョブ ID を返します。バリデーション失敗時はレコードを
// 作成せず ErrInvalidInputs を返します
func (s *Service) Submit(ctx context.Context, inputs models.CourseInputs, bypassCache bool) (uuid.UUID, error) {
	norm := inputs.Normalized()
	if !norm.HasAnyTarget() {
		return uuid.Nil, ErrInvalidInputs
	}

	id, err := s.repo.CreateJob(ctx, norm, norm.GenerateSearchTitle())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job: %w", err)
	}

	// ジョブの寿命は呼び出し元のリクエストより長いため、専用コンテキストを張る
	jobCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(jobCtx, id, norm, bypassCache)

	slog.Info("ジョブを受け付けました", "jobID", id, "searchTitle", norm.GenerateSearchTitle())
	return id, nil
}

// Get はジョブの現在状態を返します
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.repo.GetJob(ctx, id)
}

// Cancel はジョブのキャンセルを要求します
//
// 終端状態のジョブに対しては何も変更せず、現在の状態を返します（冪等）。
// 非終端のジョブは即座に cancelled として永続化し、実行中のゴルーチンには
// コンテキストのキャンセルで通知します。通知後もゴルーチンは現在のステージの
// 完了（最悪ケースでステージタイムアウト1回分）までブロックすることが
// ありますが、永続化された状態は既に cancelled のため、以降の書き込みは
// 状態機械に拒否されます
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (models.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return "", err
	}

	if job.Status.IsTerminal() {
		return job.Status, nil
	}

	status := models.JobStatusCancelled
	now := time.Now().UTC()
	errMsg := errCancelledByUser
	statusMsg := msgCancelled

	if err := s.repo.UpdateJob(ctx, id, models.JobUpdate{
		Status:        &status,
		StatusMessage: &statusMsg,
		Error:         &errMsg,
		CompletedAt:   &now,
	}); err != nil {
		return "", fmt.Errorf("failed to persist cancellation: %w", err)
	}

	if cancel, ok := s.cancels[id]; ok {
		cancel()
	}

	slog.Info("ジョブをキャンセルしました", "jobID", id, "previousStatus", job.Status)
	return status, nil
}

// Close は実行中の全ジョブにキャンセルを通知し、ゴルーチンの終了を待ちます
func (s *Service) Close() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// run は1件のジョブを最後まで処理します（専用ゴルーチンで実行）
func (s *Service) run(ctx context.Context, id uuid.UUID, inputs models.CourseInputs, bypassCache bool) {
	defer s.wg.Done()
	defer s.release(id)

	// ワーカーに空きがなければ queued へ遷移して待機する
	select {
	case s.sem <- struct{}{}:
	default:
		if err := s.transition(id, models.JobStatusQueued, models.JobUpdate{}); err != nil {
			return
		}
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			// キャンセルは Cancel 側で永続化済み
			return
		}
	}
	defer func() { <-s.sem }()

	// 実行開始前の最終キャンセル検査（queued 中のキャンセルを拾う）
	if ctx.Err() != nil {
		return
	}

	statusMsg := msgInitializing
	if err := s.transition(id, models.JobStatusRunning, models.JobUpdate{StatusMessage: &statusMsg}); err != nil {
		return
	}

	// ステージ1: コース分析（キャッシュ対象）
	var (
		analysis  models.CourseAnalysis
		cacheUsed bool
	)
	if raw, ok := s.cache.Lookup(ctx, inputs, models.CacheTypeAnalysis, bypassCache).Get(); ok {
		if err := json.Unmarshal(raw, &analysis); err != nil {
			slog.Warn("キャッシュエントリのデコードに失敗したため再分析します", "jobID", id, "error", err)
		} else {
			cacheUsed = true
		}
	}

	if cacheUsed {
		slog.Info("キャッシュされたコース分析を再利用します", "jobID", id)
		s.progress(id, msgCacheHit)
	} else {
		s.progress(id, msgAnalyzing)
		var err error
		analysis, err = s.pipeline.AnalyzeCourse(ctx, inputs)
		if err != nil {
			s.finishWithError(ctx, id, err)
			return
		}
	}

	// ステージ境界のキャンセル検査
	if ctx.Err() != nil {
		return
	}

	// ステージ2: リソース探索（毎回実行）
	reportText, err := s.pipeline.DiscoverResources(ctx, inputs, analysis)
	if err != nil {
		s.finishWithError(ctx, id, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	// パイプラインがアクセス失敗をレポート本文で通知してきた場合は失敗扱い
	if errMsg, ok := leadingError(reportText); ok {
		s.fail(id, errMsg, msgAccessError, map[string]any{
			"technical_error": head(reportText, 1000),
			"error_type":      "resource_access",
		})
		return
	}

	s.progress(id, msgParsing)
	parsed := report.Parse(reportText, inputs.ExcludedSites)

	// 新規に計算した分析結果をキャッシュへ保存する
	// レポートから抽出できた教科書情報があれば分析結果を補完してから保存する
	if !cacheUsed {
		if info, ok := parsed.TextbookInfo.Get(); ok {
			if analysis.TextbookTitle == "" {
				analysis.TextbookTitle = info.Title
			}
			if analysis.TextbookAuthor == "" {
				analysis.TextbookAuthor = info.Author
			}
			if analysis.TextbookSource == "" {
				analysis.TextbookSource = info.Source
			}
		}
		s.cache.Save(ctx, inputs, models.CacheTypeAnalysis, analysis)
	}

	metadata := map[string]any{
		"resource_count":    len(parsed.Resources),
		"report_length":     len(reportText),
		"cache_used":        cacheUsed,
		"dropped_resources": parsed.Dropped,
	}
	if info, ok := parsed.TextbookInfo.Get(); ok {
		metadata["textbook_info"] = info
	}

	// リソース0件でも完了は完了（Results は空配列として明示的に書き込む）
	results := parsed.Resources
	if results == nil {
		results = []models.Resource{}
	}

	doneMsg := msgCompleted
	if err := s.transition(id, models.JobStatusCompleted, models.JobUpdate{
		Results:       results,
		RawOutput:     &reportText,
		StatusMessage: &doneMsg,
		Metadata:      metadata,
	}); err != nil {
		// 実行中にキャンセルが入った場合: 結果は破棄され cancelled が残る
		slog.Info("終端状態が確定済みのため結果を破棄します", "jobID", id)
		return
	}

	slog.Info("ジョブが完了しました",
		"jobID", id,
		"resourceCount", len(parsed.Resources),
		"cacheUsed", cacheUsed,
	)
}

// release はキャンセル登録を解除します
func (s *Service) release(id uuid.UUID) {
	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
}

// transition は状態遷移を不可分に永続化します
// 現在状態が next への遷移を許可しない場合は errStatusConflict を返します。
// DB 書き込みはジョブコンテキストから独立しており、キャンセル後でも完了します
func (s *Service) transition(id uuid.UUID, next models.JobStatus, update models.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dbWriteTimeout)
	defer cancel()

	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if !job.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", errStatusConflict, job.Status, next)
	}

	update.Status = &next
	if next.IsTerminal() {
		now := time.Now().UTC()
		update.CompletedAt = &now
	}

	if err := s.repo.UpdateJob(ctx, id, update); err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	return nil
}

// progress は実行中ジョブの進捗メッセージを更新します（状態は変えない）
// ジョブが既に終端に達していれば何も書き込みません
func (s *Service) progress(id uuid.UUID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dbWriteTimeout)
	defer cancel()

	job, err := s.repo.GetJob(ctx, id)
	if err != nil || job.Status.IsTerminal() {
		return
	}
	if err := s.repo.UpdateJob(ctx, id, models.JobUpdate{StatusMessage: &message}); err != nil {
		slog.Warn("進捗メッセージの更新に失敗しました", "jobID", id, "error", err)
	}
}

// finishWithError はパイプラインエラーでジョブを failed にします
// エラーの原因がキャンセルの場合は Cancel 側が既に終端状態を永続化している
// ため何も書き込みません
func (s *Service) finishWithError(ctx context.Context, id uuid.UUID, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return
	}

	slog.Error("パイプラインの実行に失敗しました", "jobID", id, "error", err)
	s.fail(id, userMessage(err), msgFailed, map[string]any{
		"technical_error": err.Error(),
		"error_type":      "pipeline",
	})
}

// fail はジョブを failed として永続化します
// エラーフィールドにはユーザー向けメッセージのみを書き込み、
// 元のエラーは metadata.technical_error に verbatim で保存します
func (s *Service) fail(id uuid.UUID, errMsg, statusMsg string, metadata map[string]any) {
	if err := s.transition(id, models.JobStatusFailed, models.JobUpdate{
		Error:         &errMsg,
		StatusMessage: &statusMsg,
		Metadata:      metadata,
	}); err != nil {
		slog.Warn("失敗状態の永続化をスキップしました", "jobID", id, "error", err)
	}
}

// leadingError はレポート冒頭にエラーマーカーがあるかを判定します
// 先頭500文字以内に "ERROR:" が現れた場合のみ失敗とみなします
// （本文途中の個別リソースのエラーはパーサーが除外するため対象外）
func leadingError(reportText string) (string, bool) {
	headText := head(reportText, 500)
	if !strings.Contains(headText, "ERROR:") {
		return "", false
	}
	if m := leadingErrorPattern.FindStringSubmatch(headText); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "Cannot access provided resources", true
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
