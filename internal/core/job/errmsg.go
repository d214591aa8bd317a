package job

import "strings"

// userMessage は技術的なエラーをユーザー向けの安全なメッセージに変換します
// スタックトレースや内部パスを露出させないため、分類ごとの定型文を返します
// 元のエラー文字列はジョブの metadata に verbatim で保存されます
func userMessage(err error) string {
	lower := strings.ToLower(err.Error())

	switch {
	case containsAnyOf(lower, "api key", "api_key", "apikey", "authentication"):
		return "A required service authentication is not configured. Please contact support."
	case containsAnyOf(lower, "connection", "timeout", "network", "unreachable", "deadline exceeded"):
		return "Unable to connect to required services. Please try again later."
	case containsAnyOf(lower, "rate limit", "too many requests", "quota"):
		return "Service rate limit exceeded. Please try again in a few minutes."
	case containsAnyOf(lower, "not found", "does not exist", "no such file"):
		return "The requested resource could not be found. Please check your input and try again."
	case containsAnyOf(lower, "permission denied", "forbidden", "unauthorized"):
		return "Access to the requested resource was denied."
	case containsAnyOf(lower, "database", "postgres", "sql"):
		return "A database error occurred. Please try again later."
	default:
		return "An unexpected error occurred while processing your request. Please try again later."
	}
}

func containsAnyOf(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
