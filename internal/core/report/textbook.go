package report

import (
	"regexp"
	"strings"

	"github.com/samber/mo"

	"github.com/scholarsrc/scholar-source/pkg/models"
)

// textbookSectionPatterns は教科書情報の候補箇所を探すパターン群です
// 見出しセクション → 太字行 → 素の "Textbook:" 行の順に試します
var textbookSectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)#+ Textbook Information[:\n]+(.*?)(?:\n#|\z)`),
	regexp.MustCompile(`(?is)#+ Course Textbook[:\n]+(.*?)(?:\n#|\z)`),
	regexp.MustCompile(`(?is)#+ Official Textbook[:\n]+(.*?)(?:\n#|\z)`),
	regexp.MustCompile(`(?i)\*\*Textbook:\*\*\s*([^\n]+)`),
	regexp.MustCompile(`(?i)\*\*Text:\*\*\s*([^\n]+)`),
	regexp.MustCompile(`(?i)\*\*Official Textbook:\*\*\s*([^\n]+)`),
	regexp.MustCompile(`(?i)(?:Textbook|Text):\s*([^\n]+)`),
	regexp.MustCompile(`(?i)(?:Textbook|Text):\s*\n\s*([^\n]+)`),
	regexp.MustCompile(`(?i)(?:\*\*Textbook:\*\*|\*\*Text:\*\*)\s*\n\s*([^\n]+)`),
}

var (
	labeledFieldPattern = regexp.MustCompile(`(?i)(?:Title|Author|Source):`)
	titleFieldPattern   = regexp.MustCompile(`(?i)(?:\*\*)?(?:Title|Book)[:\s]+\*?\*?([^\n*]+)`)
	authorFieldPattern  = regexp.MustCompile(`(?i)(?:\*\*)?Author(?:s)?[:\s]+\*?\*?([^\n*]+)`)
	sourceFieldPattern  = regexp.MustCompile(`(?i)(?:\*\*)?Source[:\s]+\*?\*?([^\n*]+)`)

	byAuthorPattern = regexp.MustCompile(`(?i)by\s+([^.\n]+)`)
	editionPattern  = regexp.MustCompile(`,\s*\d+(?:st|nd|rd|th)\s+ed\.?,?\s*$`)
)

// extractTextbookInfo はレポート全体から教科書メタデータを抽出します
// リソースリストとは独立したスキャンで、見つからない場合は None を返します
func extractTextbookInfo(content string) mo.Option[models.TextbookInfo] {
	for _, pattern := range textbookSectionPatterns {
		m := pattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		section := strings.TrimSpace(m[1])

		// "Textbook: Title, 14th ed., by Author" のような1行形式
		if strings.Contains(section, ",") && !labeledFieldPattern.MatchString(section) {
			if info, ok := parseInlineTextbook(section); ok {
				return mo.Some(info)
			}
		}

		// "Title: ... / Author: ... / Source: ..." のラベル付き形式
		info := models.TextbookInfo{}
		if tm := titleFieldPattern.FindStringSubmatch(section); tm != nil {
			info.Title = strings.TrimSpace(tm[1])
		}
		if am := authorFieldPattern.FindStringSubmatch(section); am != nil {
			info.Author = strings.TrimSpace(am[1])
		}
		if sm := sourceFieldPattern.FindStringSubmatch(section); sm != nil {
			info.Source = strings.TrimSpace(sm[1])
		}

		if info.Title != "" || info.Author != "" {
			return mo.Some(info)
		}
	}

	return mo.None[models.TextbookInfo]()
}

// parseInlineTextbook はカンマ区切りの1行形式を解析します
// 対応形式:
//   - "Title, 14th ed., by Author"
//   - "Engineering Mechanics: Statics, Bedford, Fowler"（タイトル, 著者...）
//   - "Author, Title"
func parseInlineTextbook(section string) (models.TextbookInfo, bool) {
	// "by [author]" パターン: タイトルは by の前、版表記は取り除く
	if bm := byAuthorPattern.FindStringSubmatchIndex(section); bm != nil {
		author := strings.TrimSpace(section[bm[2]:bm[3]])
		titlePart := strings.TrimSpace(section[:bm[0]])
		title := strings.TrimSpace(editionPattern.ReplaceAllString(titlePart, ""))
		title = strings.TrimRight(title, ",.")
		return models.TextbookInfo{Title: title, Author: author}, true
	}

	parts := strings.Split(section, ",")
	if len(parts) < 2 {
		return models.TextbookInfo{}, false
	}

	first := strings.TrimSpace(parts[0])
	rest := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		rest = append(rest, strings.TrimSpace(p))
	}
	joined := strings.TrimRight(strings.Join(rest, ", "), ".")

	// 先頭にコロンがある、または長い場合はタイトルとみなす
	// （"Engineering Mechanics: Statics, Bedford, Fowler" 形式）
	if strings.Contains(first, ":") || len(first) > 30 {
		return models.TextbookInfo{Title: first, Author: joined}, true
	}

	// それ以外は "Author, Title" 形式
	return models.TextbookInfo{Title: joined, Author: first}, true
}
