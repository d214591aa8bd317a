package report

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	markdownURLPattern = regexp.MustCompile(`\[.*?\]\((https?://[^)]+)\)`)
	prefixedURLPattern = regexp.MustCompile(`(?i)(?:Link|URL|Website):\**\s*(https?://\S+)`)

	sourcePrefixPattern = regexp.MustCompile(`(?i)(?:Source|Provider|From):\**\s*([^\n*-]+)`)
	sourceParenPattern  = regexp.MustCompile(`\(([^)]*(?:MIT|Stanford|OpenStax|Khan|Coursera|edX|LibreTexts)[^)]*)\)`)
	// 大文字小文字を区別する（小文字の URL 内の "mit" 等に誤一致させない）
	sourceKeywordPattern = regexp.MustCompile(`(?:MIT|Stanford|OpenStax|Khan Academy|Coursera|edX|LibreTexts)[^\n-]*`)

	descPrefixPattern = regexp.MustCompile(`(?:What it covers|Description|Best for):\**\s*([^\n]+)`)
	descBulletPattern = regexp.MustCompile(`[-•]\s*([^\n]{30,200})`)

	typePrefixPattern = regexp.MustCompile(`(?i)(?:Type|Format):\s*([^\n)-]+)`)

	titleHeadingPattern = regexp.MustCompile(`(?:\*\*|##)\s*([^*#\n]+?)(?:\*\*|##|\n|$)`)
	titleLinkPattern    = regexp.MustCompile(`\[([^\]]+)\]`)

	domainPattern   = regexp.MustCompile(`https?://(?:www\.)?([^/]+)`)
	domainTLDSuffix = regexp.MustCompile(`\.(com|org|edu|net|io)$`)
)

// extractURL はテキストブロックから URL を抽出します
// markdown リンク → "Link:" 等のプレフィックス → 素の URL の順に試します
func extractURL(text string) string {
	if m := markdownURLPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := prefixedURLPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareURLPattern.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

// extractSource はテキストから出典・提供元の表現を抽出します
func extractSource(text string) string {
	if m := sourcePrefixPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := sourceParenPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := sourceKeywordPattern.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

// extractDescription はテキストブロックから説明文を抽出します
func extractDescription(text string) string {
	if m := descPrefixPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := descBulletPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractTitleFromContext は URL 周辺の文脈からタイトルらしき文字列を抽出します
func extractTitleFromContext(context, url string) string {
	pos := strings.Index(context, url)
	if pos < 0 {
		pos = len(context)
	}
	before := context[:pos]

	if m := titleHeadingPattern.FindStringSubmatch(before); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := titleLinkPattern.FindStringSubmatch(before); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractTypeFromContext は文脈中の "Type:" 注釈からリソース種別を抽出します
func extractTypeFromContext(context string) string {
	if m := typePrefixPattern.FindStringSubmatch(context); m != nil {
		return normalizeType(strings.TrimSpace(m[1]))
	}
	return "Resource"
}

// inferTypeFromURL は URL のパターンからリソース種別を推定します
// 判定できない場合は空文字列を返します（呼び出し側でフォールバック）
func inferTypeFromURL(url string) string {
	lower := strings.ToLower(url)

	switch {
	case strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be"):
		return "Video"
	case strings.Contains(lower, ".pdf") || strings.Contains(lower, "pdf"):
		return "PDF"
	case containsAny(lower, "openstax", "textbook", "book"):
		return "Textbook"
	case containsAny(lower, "course", "lecture", "ocw", "coursera", "edx"):
		return "Course"
	case containsAny(lower, "notes", "tutorial", "guide"):
		return "Tutorial"
	default:
		return ""
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// typeAliases は種別ラベルの正規化テーブルです
// 先に出現するエントリが優先されるため、順序は意味を持ちます
// （"open textbook" を "textbook" より先に判定する等）
var typeAliases = []struct {
	keyword    string
	normalized string
}{
	{"open textbook", "Textbook"},
	{"textbook", "Textbook"},
	{"video lecture", "Video"},
	{"lecture series", "Video"},
	{"video", "Video"},
	{"youtube", "Video"},
	{"course notes", "Course"},
	{"lecture notes", "Notes"},
	{"notes", "Notes"},
	{"interactive tutorial", "Tutorial"},
	{"tutorial", "Tutorial"},
	{"course", "Course"},
	{"pdf", "PDF"},
	{"website", "Website"},
	{"web page", "Website"},
}

// normalizeType は自由記述の種別ラベルを標準カテゴリに正規化します
// どのエイリアスにも一致しない場合はタイトルケース化して返します
func normalizeType(typeStr string) string {
	lower := strings.ToLower(typeStr)
	for _, alias := range typeAliases {
		if strings.Contains(lower, alias.keyword) {
			return alias.normalized
		}
	}
	return titleCase(typeStr)
}

// titleCase は各単語の先頭を大文字化します
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// extractDomain は URL からドメイン名を抽出して表示用に整形します
func extractDomain(rawURL string) string {
	m := domainPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "Unknown"
	}
	domain := domainTLDSuffix.ReplaceAllString(m[1], "")
	return titleCase(domain)
}

// isValidResourceURL は http(s) スキームを持つ整形式の URL かを検証します
func isValidResourceURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
