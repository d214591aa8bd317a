package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/scholarsrc/scholar-source/internal/core/agentconfig"
	"github.com/scholarsrc/scholar-source/pkg/models"
)

// DefaultStageTimeout はパイプライン1ステージあたりのデフォルトタイムアウト
const DefaultStageTimeout = 120 * time.Second

// Pipeline は agents.yaml / tasks.yaml の定義に従って LLM ベースの
// リソース探索を実行します。2ステージ構成:
//
//	AnalyzeCourse     — コース/教科書の構造分析（JSON 出力、キャッシュ対象）
//	DiscoverResources — 分析結果をもとにした探索レポート生成（markdown 出力）
type Pipeline struct {
	client       *Client
	loader       *agentconfig.Loader
	stageTimeout time.Duration
}

// NewPipeline は新しい Pipeline を作成します
func NewPipeline(client *Client, loader *agentconfig.Loader, stageTimeout time.Duration) *Pipeline {
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	return &Pipeline{
		client:       client,
		loader:       loader,
		stageTimeout: stageTimeout,
	}
}

// analysisPayload は分析ステージの JSON レスポンス形式
type analysisPayload struct {
	TextbookTitle  string   `json:"textbook_title"`
	TextbookAuthor string   `json:"textbook_author"`
	TextbookSource string   `json:"textbook_source"`
	Topics         []string `json:"topics"`
}

// AnalyzeCourse はコース・教科書の構造分析を実行します
func (p *Pipeline) AnalyzeCourse(ctx context.Context, inputs models.CourseInputs) (models.CourseAnalysis, error) {
	cfg, err := p.loader.Load()
	if err != nil {
		return models.CourseAnalysis{}, fmt.Errorf("failed to load agent config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	prompt := truncateTokens(buildAnalysisPrompt(cfg, inputs), maxPromptTokens)

	slog.Debug("コース分析ステージを開始します", "model", p.client.ModelName())
	content, err := p.client.generate(ctx, completionRequest{
		Prompt:      prompt,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		return models.CourseAnalysis{}, fmt.Errorf("course analysis stage failed: %w", err)
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return models.CourseAnalysis{}, fmt.Errorf("%w: course analysis response is not valid JSON: %v", ErrInvalidResponseFormat, err)
	}

	return models.CourseAnalysis{
		TextbookTitle:  payload.TextbookTitle,
		TextbookAuthor: payload.TextbookAuthor,
		TextbookSource: payload.TextbookSource,
		Topics:         payload.Topics,
		RawAnalysis:    content,
	}, nil
}

// DiscoverResources は分析結果を使ってリソース探索レポートを生成します
// 戻り値は自由テキスト（markdown）で、構造化は呼び出し側のパーサーが行います
func (p *Pipeline) DiscoverResources(ctx context.Context, inputs models.CourseInputs, analysis models.CourseAnalysis) (string, error) {
	cfg, err := p.loader.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load agent config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	prompt := truncateTokens(buildDiscoveryPrompt(cfg, inputs, analysis), maxPromptTokens)

	slog.Debug("リソース探索ステージを開始します", "model", p.client.ModelName())
	content, err := p.client.generate(ctx, completionRequest{
		Prompt:      prompt,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("resource discovery stage failed: %w", err)
	}

	return content, nil
}
