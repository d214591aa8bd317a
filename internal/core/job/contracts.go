package job

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/scholarsrc/scholar-source/pkg/models"
)

var (
	// ErrInvalidInputs は探索の起点となる入力が1つも無い場合のエラー
	// ジョブレコードを作成する前に同期的に拒否されます
	ErrInvalidInputs = errors.New("at least one course or book input is required")
)

// Repository はジョブレコードの永続化先を表します
// UpdateJob は部分更新をサポートし、未指定フィールドを上書きしてはいけません
type Repository interface {
	CreateJob(ctx context.Context, inputs models.CourseInputs, searchTitle string) (uuid.UUID, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJob(ctx context.Context, id uuid.UUID, update models.JobUpdate) error
}

// Pipeline はエージェントパイプラインを表します
// 2ステージ（コース分析 → リソース探索）に分かれており、オーケストレータは
// ステージ境界でキャンセルを検査できます。各ステージは長時間実行されうるため、
// 実装側でタイムアウトを設定します
type Pipeline interface {
	// AnalyzeCourse はコース・教科書の構造分析を実行します（高コスト・キャッシュ対象）
	AnalyzeCourse(ctx context.Context, inputs models.CourseInputs) (models.CourseAnalysis, error)

	// DiscoverResources は分析結果を使ってリソース探索を実行し、
	// 自由テキストのレポートを返します（毎回実行・キャッシュしない）
	DiscoverResources(ctx context.Context, inputs models.CourseInputs, analysis models.CourseAnalysis) (string, error)
}

// AnalysisCache は分析結果のキャッシュを表します
// 障害はキャッシュ側で吸収され、呼び出し元にエラーは返りません
type AnalysisCache interface {
	Lookup(ctx context.Context, inputs models.CourseInputs, cacheType models.CacheType, bypass bool) mo.Option[json.RawMessage]
	Save(ctx context.Context, inputs models.CourseInputs, cacheType models.CacheType, results any)
}
