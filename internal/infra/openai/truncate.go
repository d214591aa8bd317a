package openai

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// maxPromptTokens はプロンプト1本あたりのトークン上限
// モデルのコンテキスト長から応答分の余裕を引いた値
const maxPromptTokens = 6000

// truncateTokens はテキストをトークン数で切り詰めます
// エンコーディングの取得に失敗した場合はバイト長（1トークン≒4バイト）で概算します
func truncateTokens(text string, maxTokens int) string {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("トークナイザの初期化に失敗したためバイト長で切り詰めます", "error", err)
		if limit := maxTokens * 4; len(text) > limit {
			return text[:limit]
		}
		return text
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}

	slog.Debug("プロンプトをトークン上限まで切り詰めます", "tokens", len(tokens), "maxTokens", maxTokens)
	return enc.Decode(tokens[:maxTokens])
}
