package agentconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// エージェント/タスク定義の既定キー
const (
	AgentCourseIntelligence = "course_intelligence_agent"
	AgentResourceDiscovery  = "resource_discovery_agent"
	AgentResourceValidator  = "resource_validator_agent"
	AgentOutputFormatter    = "output_formatter_agent"

	TaskCourseAnalysis     = "course_analysis_task"
	TaskResourceSearch     = "resource_search_task"
	TaskResourceValidation = "resource_validation_task"
	TaskFinalOutput        = "final_output_task"
)

// AgentSpec はエージェント1体の定義を表します
type AgentSpec struct {
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

// TaskSpec はタスク1件の定義を表します
type TaskSpec struct {
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
	Agent          string `yaml:"agent"`
}

// Config は読み込み済みのエージェント/タスク定義を表します
type Config struct {
	Agents map[string]AgentSpec
	Tasks  map[string]TaskSpec
}

// Loader は agents.yaml / tasks.yaml を読み込み、設定ハッシュを計算します
// ハッシュは (mtime, size) 単位でメモ化され、毎回の stat でファイル変更を検知します
// （stat 以上の鮮度遅延はありません）
type Loader struct {
	agentsPath string
	tasksPath  string

	mu         sync.Mutex
	cachedHash string
	cachedStat [2]statKey
}

type statKey struct {
	modTimeNano int64
	size        int64
}

// NewLoader は新しい Loader を作成します
func NewLoader(agentsPath, tasksPath string) *Loader {
	return &Loader{
		agentsPath: agentsPath,
		tasksPath:  tasksPath,
	}
}

// Load は両ファイルを読み込んで Config を返します
func (l *Loader) Load() (*Config, error) {
	cfg := &Config{
		Agents: make(map[string]AgentSpec),
		Tasks:  make(map[string]TaskSpec),
	}

	agentsData, err := os.ReadFile(l.agentsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents config: %w", err)
	}
	if err := yaml.Unmarshal(agentsData, &cfg.Agents); err != nil {
		return nil, fmt.Errorf("failed to parse agents config: %w", err)
	}

	tasksData, err := os.ReadFile(l.tasksPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks config: %w", err)
	}
	if err := yaml.Unmarshal(tasksData, &cfg.Tasks); err != nil {
		return nil, fmt.Errorf("failed to parse tasks config: %w", err)
	}

	return cfg, nil
}

// ConfigHash は両設定ファイル内容の sha256 の先頭16文字（hex）を返します
// ファイルが1バイトでも変わればハッシュが変わり、キャッシュキーが無効化されます
// ファイルが存在しない場合はセンチネル文字列をハッシュに加えます（エラーにしない）
func (l *Loader) ConfigHash() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := [2]statKey{
		statFile(l.agentsPath),
		statFile(l.tasksPath),
	}
	if l.cachedHash != "" && stats == l.cachedStat {
		return l.cachedHash, nil
	}

	h := sha256.New()
	if err := hashFile(h, l.agentsPath, "agents.yaml_not_found"); err != nil {
		return "", err
	}
	if err := hashFile(h, l.tasksPath, "tasks.yaml_not_found"); err != nil {
		return "", err
	}

	hash := hex.EncodeToString(h.Sum(nil))[:16]
	l.cachedHash = hash
	l.cachedStat = stats

	return hash, nil
}

func statFile(path string) statKey {
	info, err := os.Stat(path)
	if err != nil {
		return statKey{modTimeNano: -1, size: -1}
	}
	return statKey{modTimeNano: info.ModTime().UnixNano(), size: info.Size()}
}

func hashFile(h interface{ Write([]byte) (int, error) }, path, missingSentinel string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			_, _ = h.Write([]byte(missingSentinel))
			return nil
		}
		return fmt.Errorf("failed to read config file for hashing: %w", err)
	}
	_, _ = h.Write(data)
	return nil
}
