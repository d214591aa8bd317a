package openai

import (
	"fmt"
	"strings"

	"github.com/scholarsrc/scholar-source/internal/core/agentconfig"
	"github.com/scholarsrc/scholar-source/pkg/models"
)

// buildAnalysisPrompt はコース分析ステージのプロンプトを構築します
// エージェントのペルソナとタスク記述は agents.yaml / tasks.yaml から取得し、
// {placeholder} をジョブ入力で埋めます
func buildAnalysisPrompt(cfg *agentconfig.Config, inputs models.CourseInputs) string {
	var b strings.Builder

	writePersona(&b, cfg.Agents[agentconfig.AgentCourseIntelligence])

	task := cfg.Tasks[agentconfig.TaskCourseAnalysis]
	b.WriteString("# Task\n")
	b.WriteString(renderTemplate(task.Description, inputs))
	b.WriteString("\n\n")

	writeInputs(&b, inputs)

	b.WriteString("# Output Format\n")
	b.WriteString("Respond with a single JSON object with the following keys:\n")
	b.WriteString(`{"textbook_title": "...", "textbook_author": "...", "textbook_source": "...", "topics": ["...", "..."]}`)
	b.WriteString("\nUse empty strings or an empty array for anything you cannot determine.\n")
	if task.ExpectedOutput != "" {
		b.WriteString("\nExpected output: ")
		b.WriteString(renderTemplate(task.ExpectedOutput, inputs))
		b.WriteString("\n")
	}

	return b.String()
}

// buildDiscoveryPrompt はリソース探索ステージのプロンプトを構築します
// 出力は番号付き太字ブロックの markdown レポートを要求します（パーサーの第一戦略）
func buildDiscoveryPrompt(cfg *agentconfig.Config, inputs models.CourseInputs, analysis models.CourseAnalysis) string {
	var b strings.Builder

	writePersona(&b, cfg.Agents[agentconfig.AgentResourceDiscovery])

	task := cfg.Tasks[agentconfig.TaskResourceSearch]
	b.WriteString("# Task\n")
	b.WriteString(renderTemplate(task.Description, inputs))
	b.WriteString("\n\n")

	writeInputs(&b, inputs)

	b.WriteString("# Course Analysis\n")
	if analysis.TextbookTitle != "" {
		fmt.Fprintf(&b, "Textbook: %s", analysis.TextbookTitle)
		if analysis.TextbookAuthor != "" {
			fmt.Fprintf(&b, " by %s", analysis.TextbookAuthor)
		}
		b.WriteString("\n")
	}
	if len(analysis.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(analysis.Topics, ", "))
	}
	b.WriteString("\n")

	b.WriteString("# Output Format\n")
	b.WriteString("Produce a markdown report. List each resource as a numbered bold heading:\n\n")
	b.WriteString("**1. Resource Title** (Type: Open Textbook)\n")
	b.WriteString("- **Link:** https://example.com\n")
	b.WriteString("- **Source:** Provider Name\n")
	b.WriteString("- **What it covers:** One-line description\n\n")
	b.WriteString("If you cannot access the course or book at all, start your response with a single line:\n")
	b.WriteString("ERROR: <short reason>\n")
	if task.ExpectedOutput != "" {
		b.WriteString("\nExpected output: ")
		b.WriteString(renderTemplate(task.ExpectedOutput, inputs))
		b.WriteString("\n")
	}

	return b.String()
}

func writePersona(b *strings.Builder, agent agentconfig.AgentSpec) {
	if agent.Role == "" && agent.Goal == "" {
		return
	}
	b.WriteString("# Role\n")
	if agent.Role != "" {
		fmt.Fprintf(b, "You are %s.\n", strings.TrimSpace(agent.Role))
	}
	if agent.Goal != "" {
		fmt.Fprintf(b, "Goal: %s\n", strings.TrimSpace(agent.Goal))
	}
	if agent.Backstory != "" {
		fmt.Fprintf(b, "%s\n", strings.TrimSpace(agent.Backstory))
	}
	b.WriteString("\n")
}

// writeInputs は空でないジョブ入力を列挙します
func writeInputs(b *strings.Builder, inputs models.CourseInputs) {
	b.WriteString("# Inputs\n")
	fields := []struct {
		label string
		value string
	}{
		{"University", inputs.UniversityName},
		{"Course", inputs.CourseName},
		{"Course URL", inputs.CourseURL},
		{"Textbook", inputs.Textbook},
		{"Book Title", inputs.BookTitle},
		{"Book Author", inputs.BookAuthor},
		{"ISBN", inputs.ISBN},
		{"Book URL", inputs.BookURL},
		{"Topics", inputs.TopicsList},
		{"Desired resource types", strings.Join(inputs.DesiredResourceTypes, ", ")},
		{"Excluded sites", inputs.ExcludedSites},
		{"Preferred sites", inputs.TargetedSites},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(b, "- %s: %s\n", f.label, f.value)
		}
	}
	b.WriteString("\n")
}

// templateReplacements は YAML タスク記述中のプレースホルダーと入力の対応表
func templateReplacements(inputs models.CourseInputs) []string {
	return []string{
		"{university_name}", inputs.UniversityName,
		"{course_name}", inputs.CourseName,
		"{course_url}", inputs.CourseURL,
		"{textbook}", inputs.Textbook,
		"{topics_list}", inputs.TopicsList,
		"{book_title}", inputs.BookTitle,
		"{book_author}", inputs.BookAuthor,
		"{isbn}", inputs.ISBN,
		"{book_url}", inputs.BookURL,
		"{desired_resource_types}", strings.Join(inputs.DesiredResourceTypes, ", "),
		"{excluded_sites}", inputs.ExcludedSites,
		"{targeted_sites}", inputs.TargetedSites,
	}
}

func renderTemplate(template string, inputs models.CourseInputs) string {
	return strings.NewReplacer(templateReplacements(inputs)...).Replace(template)
}
