package models

// Resource は発見された学習リソース1件を表します
// Type は自由文字列のカテゴリラベルです（パイプラインの出力が自由テキストのため
// 閉じた列挙にはしません）
type Resource struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// TextbookInfo はレポートから抽出した教科書メタデータです
type TextbookInfo struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Source string `json:"source,omitempty"`
}

// CourseAnalysis はコース分析ステージの結果を表します
// analysis 層のキャッシュにそのまま JSON として保存されます
type CourseAnalysis struct {
	TextbookTitle  string   `json:"textbook_title,omitempty"`
	TextbookAuthor string   `json:"textbook_author,omitempty"`
	TextbookSource string   `json:"textbook_source,omitempty"`
	Topics         []string `json:"topics,omitempty"`
	RawAnalysis    string   `json:"raw_analysis,omitempty"`
}
