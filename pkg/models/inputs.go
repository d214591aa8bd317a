package models

import (
	"fmt"
	"sort"
	"strings"
)

// CourseInputs は探索対象のコース・教科書情報を表します
// 正規化後はジョブ作成時に永続化され、以降は不変です
type CourseInputs struct {
	UniversityName       string   `json:"university_name,omitempty"`
	CourseName           string   `json:"course_name,omitempty"`
	CourseURL            string   `json:"course_url,omitempty"`
	Textbook             string   `json:"textbook,omitempty"`
	TopicsList           string   `json:"topics_list,omitempty"`
	BookTitle            string   `json:"book_title,omitempty"`
	BookAuthor           string   `json:"book_author,omitempty"`
	ISBN                 string   `json:"isbn,omitempty"`
	BookPDFPath          string   `json:"book_pdf_path,omitempty"`
	BookURL              string   `json:"book_url,omitempty"`
	DesiredResourceTypes []string `json:"desired_resource_types,omitempty"`
	ExcludedSites        string   `json:"excluded_sites,omitempty"`
	TargetedSites        string   `json:"targeted_sites,omitempty"`
}

// Normalized は正規化済みの入力を返します
// 全フィールドをトリムし、空要素を除去します。カンマ区切りリストと ISBN は
// 小文字化・ソートして同値な入力が同一のフィンガープリントになるようにします
// （URL とタイトルはパス部分が大文字小文字を区別するため原文のまま保持）
func (in CourseInputs) Normalized() CourseInputs {
	out := CourseInputs{
		UniversityName: strings.TrimSpace(in.UniversityName),
		CourseName:     strings.TrimSpace(in.CourseName),
		CourseURL:      strings.TrimSpace(in.CourseURL),
		Textbook:       strings.TrimSpace(in.Textbook),
		TopicsList:     normalizeCommaList(in.TopicsList),
		BookTitle:      strings.TrimSpace(in.BookTitle),
		BookAuthor:     strings.TrimSpace(in.BookAuthor),
		ISBN:           strings.ToLower(strings.TrimSpace(in.ISBN)),
		BookPDFPath:    strings.TrimSpace(in.BookPDFPath),
		BookURL:        strings.TrimSpace(in.BookURL),
		ExcludedSites:  normalizeCommaList(in.ExcludedSites),
		TargetedSites:  normalizeCommaList(in.TargetedSites),
	}

	types := make([]string, 0, len(in.DesiredResourceTypes))
	for _, t := range in.DesiredResourceTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	if len(types) > 0 {
		out.DesiredResourceTypes = types
	}

	return out
}

// HasAnyTarget は探索の起点となる入力が1つ以上あるかを返します
// コース情報、書籍情報（タイトル+著者 または ISBN）、PDF パス、書籍 URL のいずれか
func (in CourseInputs) HasAnyTarget() bool {
	if in.CourseName != "" || in.UniversityName != "" || in.CourseURL != "" {
		return true
	}
	if in.BookTitle != "" && in.BookAuthor != "" {
		return true
	}
	if in.ISBN != "" || in.BookPDFPath != "" || in.BookURL != "" || in.Textbook != "" {
		return true
	}
	return false
}

// GenerateSearchTitle は一覧表示用のタイトルを生成します
func (in CourseInputs) GenerateSearchTitle() string {
	switch {
	case in.BookTitle != "":
		return in.BookTitle
	case in.CourseName != "" && in.UniversityName != "":
		return fmt.Sprintf("%s - %s", in.UniversityName, in.CourseName)
	case in.CourseName != "":
		return in.CourseName
	case in.UniversityName != "":
		return in.UniversityName + " Course"
	case in.Textbook != "":
		return in.Textbook
	default:
		return "Course Resource Search"
	}
}

// normalizeCommaList はカンマ区切りリストをトリム・小文字化・ソートして再結合します
func normalizeCommaList(s string) string {
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			items = append(items, p)
		}
	}
	sort.Strings(items)
	return strings.Join(items, ",")
}
