package report

import (
	"regexp"
	"strings"

	"github.com/samber/mo"

	"github.com/scholarsrc/scholar-source/pkg/models"
)

// Result はレポート解析の結果を表します
// Dropped はセンチネル・不正URL・除外ドメインで破棄した候補数（診断用）
type Result struct {
	Resources    []models.Resource
	TextbookInfo mo.Option[models.TextbookInfo]
	Dropped      int
}

var (
	// **1. Title** (Type: Open Textbook) 形式の見出し
	numberedPattern = regexp.MustCompile(`\*\*(?:\d+\.?|Resource \d+:?)\s+([^*]+?)\*\*(?:\s+\((?:Type:\s*)?([^)]+)\))?`)

	// 次の番号付きブロックの開始位置（ブロック境界の検出用）
	nextNumberedPattern = regexp.MustCompile(`\*\*(?:\d+\.?|Resource \d+)`)

	// [text](url) 形式のリンク
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

	// 素の URL
	bareURLPattern = regexp.MustCompile(`https?://[^\s)\],>]+`)
)

// errorIndicators はパイプラインの失敗を示すセンチネル（小文字で保持）
var errorIndicators = []string{
	"error",
	"could not fetch",
	"failed to",
	"http error",
	"timed out",
}

// Parse はパイプラインの自由テキストレポートを構造化リソースに変換します
//
// レポートの書式はプロンプト駆動で揺れるため、単一の厳密な文法ではなく
// 複数の解析戦略を順に試します:
//  1. 番号付き太字ブロック（最も一般的な出力形式）
//  2. markdown リンクセクション
//  3. 素の URL 抽出（フォールバック）
//
// 解析できないセグメントはスキップするだけで、全体の解析を中断しません。
// 同じ入力に対して常に同じ出力を返し、リソースは初出順を保持します
func Parse(content string, excludedSites string) Result {
	res := Result{}

	resources, dropped := parseNumberedResources(content)
	res.Dropped += dropped

	if len(resources) == 0 {
		resources, dropped = parseLinkSections(content)
		res.Dropped += dropped
	}

	if len(resources) == 0 {
		resources, dropped = parseAllLinks(content)
		res.Dropped += dropped
	}

	if strings.TrimSpace(excludedSites) != "" {
		var excluded int
		resources, excluded = filterExcludedDomains(resources, excludedSites)
		res.Dropped += excluded
	}

	res.Resources = resources
	res.TextbookInfo = extractTextbookInfo(content)

	return res
}

// parseNumberedResources は番号付きブロック形式を解析します
//
//	**1. Resource Title** (Type: Open Textbook)
//	- **Link:** https://example.com
//	- **What it covers:** Description
func parseNumberedResources(content string) ([]models.Resource, int) {
	var (
		resources []models.Resource
		dropped   int
	)

	matches := numberedPattern.FindAllStringSubmatchIndex(content, -1)
	for _, m := range matches {
		title := strings.TrimSpace(content[m[2]:m[3]])

		// 種別注釈が無い場合は "Resource" のまま（正規化に通すと誤判定する）
		resourceType := "Resource"
		if m[4] >= 0 {
			resourceType = normalizeType(strings.TrimSpace(content[m[4]:m[5]]))
		}

		// このリソースのブロック（次の番号付き項目まで、なければ末尾まで）
		start := m[1]
		block := content[start:]
		if next := nextNumberedPattern.FindStringIndex(block); next != nil {
			block = block[:next[0]]
		}

		url := extractURL(block)
		source := extractSource(block)
		description := extractDescription(block)

		// URL が無い・不正・エラーを含むセグメントは破棄する
		if !isValidResourceURL(url) || containsError(url, title, description) {
			dropped++
			continue
		}

		resources = append(resources, models.Resource{
			Type:        resourceType,
			Title:       title,
			Source:      sourceOrUnknown(source),
			URL:         url,
			Description: description,
		})
	}

	return resources, dropped
}

// parseLinkSections は markdown リンクからリソースを抽出します
//
//	### Topic Area
//	[Resource Title](https://example.com)
//	Description here
func parseLinkSections(content string) ([]models.Resource, int) {
	var (
		resources []models.Resource
		dropped   int
	)

	matches := markdownLinkPattern.FindAllStringSubmatchIndex(content, -1)
	for _, m := range matches {
		title := strings.TrimSpace(content[m[2]:m[3]])
		url := strings.TrimSpace(content[m[4]:m[5]])

		// ナビゲーションリンクや見出しへのアンカーはスキップ
		lowerTitle := strings.ToLower(title)
		if strings.HasPrefix(url, "#") || lowerTitle == "back to top" || lowerTitle == "top" || lowerTitle == "home" {
			continue
		}

		// リンク周辺の文脈から出典・説明を補完する
		context := surrounding(content, m[0], m[1], 200)
		source := extractSource(context)
		description := extractDescription(context)

		resourceType := inferTypeFromURL(url)
		if resourceType == "" {
			resourceType = extractTypeFromContext(context)
		}

		if !isValidResourceURL(url) || containsError(url, title, description) {
			dropped++
			continue
		}

		resources = append(resources, models.Resource{
			Type:        resourceType,
			Title:       title,
			Source:      sourceOrUnknown(source),
			URL:         url,
			Description: description,
		})
	}

	return resources, dropped
}

// parseAllLinks はフォールバックとして全 URL を基本リソースとして抽出します
func parseAllLinks(content string) ([]models.Resource, int) {
	var (
		resources []models.Resource
		dropped   int
	)

	urls := bareURLPattern.FindAllString(content, -1)

	// 初出順を保ったまま重複を除去
	seen := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}

		pos := strings.Index(content, url)
		context := surrounding(content, pos, pos+len(url), 100)

		title := extractTitleFromContext(context, url)
		source := extractSource(context)
		resourceType := inferTypeFromURL(url)
		if resourceType == "" {
			resourceType = "Website"
		}

		if !isValidResourceURL(url) || containsError(url, title, "") {
			dropped++
			continue
		}

		if title == "" {
			title = url
		}
		if source == "" {
			source = extractDomain(url)
		}

		resources = append(resources, models.Resource{
			Type:   resourceType,
			Title:  title,
			Source: source,
			URL:    url,
		})
	}

	return resources, dropped
}

// filterExcludedDomains は除外ドメインリストに一致するリソースを取り除きます
// リストはカンマ区切りで、URL への部分一致で判定します
// （"mit.edu" は "ocw.mit.edu" のようなサブドメインにも一致する）
func filterExcludedDomains(resources []models.Resource, excludedSites string) ([]models.Resource, int) {
	var domains []string
	for _, d := range strings.Split(excludedSites, ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return resources, 0
	}

	filtered := make([]models.Resource, 0, len(resources))
	dropped := 0
	for _, r := range resources {
		url := strings.ToLower(r.URL)
		exclude := false
		for _, d := range domains {
			if strings.Contains(url, d) {
				exclude = true
				break
			}
		}
		if exclude {
			dropped++
			continue
		}
		filtered = append(filtered, r)
	}

	return filtered, dropped
}

// containsError はいずれかのフィールドにエラーセンチネルが含まれるかを判定します
func containsError(url, title, description string) bool {
	for _, field := range []string{url, title, description} {
		lower := strings.ToLower(field)
		for _, indicator := range errorIndicators {
			if strings.Contains(lower, indicator) {
				return true
			}
		}
	}
	return false
}

// surrounding は [start, end) の前後 margin バイトの文脈を返します
func surrounding(content string, start, end, margin int) string {
	from := start - margin
	if from < 0 {
		from = 0
	}
	to := end + margin
	if to > len(content) {
		to = len(content)
	}
	return content[from:to]
}

func sourceOrUnknown(source string) string {
	if source == "" {
		return "Unknown"
	}
	return source
}
