package job

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessageClassification(t *testing.T) {
	// 技術的な詳細（アドレス・スタック情報）が露出しないことを確認する
	cases := []struct {
		err      error
		contains string
	}{
		{errors.New("dial tcp 10.0.0.5:443: connection refused"), "Unable to connect"},
		{errors.New("context deadline exceeded"), "Unable to connect"},
		{errors.New("429 too many requests"), "rate limit"},
		{errors.New("invalid api key provided"), "authentication"},
		{errors.New("permission denied for resource"), "denied"},
		{errors.New("pq: database is shutting down"), "database"},
		{errors.New("something completely unexpected"), "unexpected error"},
	}

	for _, tc := range cases {
		msg := userMessage(tc.err)
		assert.Containsf(t, msg, tc.contains, "error: %v", tc.err)
		assert.NotContains(t, msg, "10.0.0.5")
	}
}
