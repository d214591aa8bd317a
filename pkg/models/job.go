package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus はジョブの状態を表します
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// statusRank は状態機械上の位置（後退遷移の検出に使用）
var statusRank = map[JobStatus]int{
	JobStatusPending:   0,
	JobStatusQueued:    1,
	JobStatusRunning:   2,
	JobStatusCompleted: 3,
	JobStatusFailed:    3,
	JobStatusCancelled: 3,
}

// IsTerminal は終端状態（completed / failed / cancelled）かどうかを返します
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Valid は既知の状態かどうかを返します
func (s JobStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo は s から next への遷移が許可されるかを返します
// 終端状態からの遷移、および状態機械を後退する遷移は常に拒否されます
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// Job は1件のリソース探索ジョブを表します
// 作成後の Inputs は不変で、Status と関連フィールドの書き込みはオーケストレータのみが行います
type Job struct {
	ID            uuid.UUID      `json:"id"`
	Status        JobStatus      `json:"status"`
	Inputs        CourseInputs   `json:"inputs"`
	SearchTitle   string         `json:"search_title,omitempty"`
	Results       []Resource     `json:"results,omitempty"`
	RawOutput     *string        `json:"raw_output,omitempty"`
	Error         *string        `json:"error,omitempty"`
	StatusMessage *string        `json:"status_message,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// JobUpdate はジョブレコードの部分更新を表します
// nil のフィールドは更新対象外（既存値を保持）
type JobUpdate struct {
	Status        *JobStatus
	Results       []Resource
	RawOutput     *string
	Error         *string
	StatusMessage *string
	Metadata      map[string]any
	CompletedAt   *time.Time
}
