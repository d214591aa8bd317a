package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferTypeFromURL(t *testing.T) {
	assert.Equal(t, "Video", inferTypeFromURL("https://www.youtube.com/watch?v=abc"))
	assert.Equal(t, "Video", inferTypeFromURL("https://youtu.be/abc"))
	assert.Equal(t, "PDF", inferTypeFromURL("https://example.edu/notes.pdf"))
	assert.Equal(t, "Textbook", inferTypeFromURL("https://openstax.org/details/books/calculus"))
	assert.Equal(t, "Course", inferTypeFromURL("https://www.coursera.org/learn/algebra"))
	assert.Equal(t, "Course", inferTypeFromURL("https://ocw.mit.edu/18-06"))
	assert.Equal(t, "Tutorial", inferTypeFromURL("https://example.com/guide/intro"))

	// 判定できない場合は空（呼び出し側がフォールバックする）
	assert.Equal(t, "", inferTypeFromURL("https://example.com/page"))
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "Textbook", normalizeType("Open Textbook"))
	assert.Equal(t, "Textbook", normalizeType("textbook"))
	assert.Equal(t, "Video", normalizeType("Video Lecture"))
	assert.Equal(t, "Video", normalizeType("YouTube playlist"))
	assert.Equal(t, "Notes", normalizeType("Lecture Notes"))
	assert.Equal(t, "Tutorial", normalizeType("Interactive Tutorial"))
	assert.Equal(t, "Website", normalizeType("web page"))

	// 未知の種別はタイトルケース化して返す
	assert.Equal(t, "Practice Problems", normalizeType("practice problems"))
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "Openstax", extractDomain("https://openstax.org/subjects"))
	assert.Equal(t, "Khanacademy", extractDomain("https://www.khanacademy.org/math"))
	assert.Equal(t, "Unknown", extractDomain("not a url"))
}

func TestIsValidResourceURL(t *testing.T) {
	assert.True(t, isValidResourceURL("https://example.com/page"))
	assert.True(t, isValidResourceURL("http://example.com"))

	assert.False(t, isValidResourceURL(""))
	assert.False(t, isValidResourceURL("ftp://example.com/file"))
	assert.False(t, isValidResourceURL("example.com/no-scheme"))
	assert.False(t, isValidResourceURL("https://"))
}

func TestExtractURLPriority(t *testing.T) {
	// markdown リンクが最優先
	text := "[title](https://a.example.com) Link: https://b.example.com https://c.example.com"
	assert.Equal(t, "https://a.example.com", extractURL(text))

	// 次に Link: プレフィックス
	text = "Link: https://b.example.com and also https://c.example.com"
	assert.Equal(t, "https://b.example.com", extractURL(text))

	// 最後に素の URL
	assert.Equal(t, "https://c.example.com", extractURL("see https://c.example.com"))
	assert.Equal(t, "", extractURL("no url here"))
}

func TestExtractURLToleratesBoldMarkers(t *testing.T) {
	assert.Equal(t, "https://example.com/x", extractURL("- **Link:** https://example.com/x"))
}

func TestExtractSource(t *testing.T) {
	assert.Equal(t, "OpenStax", extractSource("- **Source:** OpenStax"))
	assert.Equal(t, "MIT OpenCourseWare", extractSource("offered by (MIT OpenCourseWare)"))
	assert.Equal(t, "Khan Academy", extractSource("available on Khan Academy"))

	// 小文字の URL 内の "mit" には誤一致しない
	assert.Equal(t, "", extractSource("see https://ocw.mit.edu/course"))
}

func TestExtractDescription(t *testing.T) {
	assert.Equal(t, "Covers all core topics", extractDescription("**What it covers:** Covers all core topics"))
	assert.Equal(t, "Everything you need", extractDescription("Description: Everything you need"))

	// プレフィックスが無い場合は30文字以上の箇条書きから拾う
	desc := extractDescription("- A thorough walkthrough of eigenvalue decomposition methods")
	assert.Equal(t, "A thorough walkthrough of eigenvalue decomposition methods", desc)

	// 短い箇条書きは説明とみなさない
	assert.Equal(t, "", extractDescription("- short note"))
}
