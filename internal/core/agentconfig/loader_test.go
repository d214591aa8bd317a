package agentconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAgentsYAML = `course_intelligence_agent:
  role: Course Intelligence Specialist
  goal: Analyze course structure and identify the official textbook
  backstory: An expert at reading university course pages.

resource_discovery_agent:
  role: Resource Discovery Specialist
  goal: Find free study resources matching the course topics
  backstory: Knows where open educational resources live.
`

const testTasksYAML = `course_analysis_task:
  description: Analyze the course at {course_url} and identify its textbook.
  expected_output: A structured summary of the course and textbook.
  agent: course_intelligence_agent

resource_search_task:
  description: Find resources for {course_name} covering {topics_list}.
  expected_output: A markdown report of discovered resources.
  agent: resource_discovery_agent
`

func writeConfigFiles(t *testing.T, agents, tasks string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	agentsPath := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(agentsPath, []byte(agents), 0o644))

	tasksPath := filepath.Join(dir, "tasks.yaml")
	require.NoError(t, os.WriteFile(tasksPath, []byte(tasks), 0o644))

	return agentsPath, tasksPath
}

func TestLoaderLoad(t *testing.T) {
	agentsPath, tasksPath := writeConfigFiles(t, testAgentsYAML, testTasksYAML)
	loader := NewLoader(agentsPath, tasksPath)

	cfg, err := loader.Load()
	require.NoError(t, err)

	agent, ok := cfg.Agents[AgentCourseIntelligence]
	require.True(t, ok)
	assert.Equal(t, "Course Intelligence Specialist", agent.Role)

	task, ok := cfg.Tasks[TaskCourseAnalysis]
	require.True(t, ok)
	assert.Contains(t, task.Description, "{course_url}")
	assert.Equal(t, AgentCourseIntelligence, task.Agent)
}

func TestLoaderLoadMissingFileFails(t *testing.T) {
	loader := NewLoader("/nonexistent/agents.yaml", "/nonexistent/tasks.yaml")

	_, err := loader.Load()
	assert.Error(t, err)
}

func TestConfigHashIsStable(t *testing.T) {
	agentsPath, tasksPath := writeConfigFiles(t, testAgentsYAML, testTasksYAML)
	loader := NewLoader(agentsPath, tasksPath)

	h1, err := loader.ConfigHash()
	require.NoError(t, err)
	h2, err := loader.ConfigHash()
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)
}

func TestConfigHashChangesOnAnyByteChange(t *testing.T) {
	agentsPath, tasksPath := writeConfigFiles(t, testAgentsYAML, testTasksYAML)
	loader := NewLoader(agentsPath, tasksPath)

	before, err := loader.ConfigHash()
	require.NoError(t, err)

	// 1バイトの変更でもハッシュが変わる
	require.NoError(t, os.WriteFile(tasksPath, []byte(testTasksYAML+"\n"), 0o644))

	after, err := NewLoader(agentsPath, tasksPath).ConfigHash()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestConfigHashMissingFileUsesSentinel(t *testing.T) {
	agentsPath, tasksPath := writeConfigFiles(t, testAgentsYAML, testTasksYAML)

	// ファイルが存在しなくてもエラーにならず、決定的なハッシュを返す
	missing := NewLoader(filepath.Join(t.TempDir(), "agents.yaml"), filepath.Join(t.TempDir(), "tasks.yaml"))
	h1, err := missing.ConfigHash()
	require.NoError(t, err)
	assert.Len(t, h1, 16)

	// 存在する場合とは異なるハッシュになる
	present, err := NewLoader(agentsPath, tasksPath).ConfigHash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, present)
}
