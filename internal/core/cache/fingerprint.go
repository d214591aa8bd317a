package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/scholarsrc/scholar-source/pkg/models"
)

// Fingerprint は正規化済み入力と設定ハッシュから安定したフィンガープリントを計算します
// 同値な入力（空白差・リスト順序差のみ）は正規化により同一のフィンガープリントに
// 収束します。キー部品の構成と順序は固定で、出力は決定的です
func Fingerprint(inputs models.CourseInputs, configHash string) string {
	in := inputs.Normalized()

	keyParts := make([]string, 0, 7)

	// 主要識別子
	if in.CourseURL != "" {
		keyParts = append(keyParts, "course:"+in.CourseURL)
	}
	if in.BookURL != "" {
		keyParts = append(keyParts, "book_url:"+in.BookURL)
	}
	if in.BookTitle != "" && in.BookAuthor != "" {
		keyParts = append(keyParts, "book:"+in.BookTitle+"|"+in.BookAuthor)
	}
	if in.ISBN != "" {
		keyParts = append(keyParts, "isbn:"+in.ISBN)
	}

	// 結果に影響する任意パラメータ（Normalized がソート済みにしている）
	if in.TopicsList != "" {
		keyParts = append(keyParts, "topics:"+in.TopicsList)
	}
	if len(in.DesiredResourceTypes) > 0 {
		keyParts = append(keyParts, "resources:"+strings.Join(in.DesiredResourceTypes, ","))
	}

	// 設定変更でキーごと無効化する
	keyParts = append(keyParts, "config:"+configHash)

	sum := sha256.Sum256([]byte(strings.Join(keyParts, "|")))
	return hex.EncodeToString(sum[:])
}

// Key はキャッシュ層を含む最終的なキャッシュキーを構築します
func Key(inputs models.CourseInputs, cacheType models.CacheType, configHash string) string {
	return string(cacheType) + ":" + Fingerprint(inputs, configHash)
}
