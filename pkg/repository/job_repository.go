package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarsrc/scholar-source/pkg/models"
)

// JobRepository は jobs テーブルへのアクセスを提供します
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository は新しい JobRepository を作成します
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// CreateJob は pending 状態の新しいジョブを作成し、IDを返します
func (r *JobRepository) CreateJob(ctx context.Context, inputs models.CourseInputs, searchTitle string) (uuid.UUID, error) {
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal inputs: %w", err)
	}

	id := uuid.New()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO jobs (id, status, inputs, search_title, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, string(models.JobStatusPending), inputsJSON, searchTitle, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job: %w", err)
	}

	return id, nil
}

// GetJob は ID でジョブを取得します
// 存在しない場合は ErrJobNotFound を返します
func (r *JobRepository) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, status, inputs, search_title, results, raw_output, error,
		       status_message, metadata, created_at, completed_at
		FROM jobs
		WHERE id = $1`,
		id,
	)

	var (
		job          models.Job
		status       string
		inputsJSON   []byte
		resultsJSON  []byte
		metadataJSON []byte
	)
	err := row.Scan(
		&job.ID, &status, &inputsJSON, &job.SearchTitle, &resultsJSON,
		&job.RawOutput, &job.Error, &job.StatusMessage, &metadataJSON,
		&job.CreatedAt, &job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Status = models.JobStatus(status)
	if err := json.Unmarshal(inputsJSON, &job.Inputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job inputs: %w", err)
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &job.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job results: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job metadata: %w", err)
		}
	}

	return &job, nil
}

// UpdateJob はジョブの部分更新を行います
// update の nil フィールドは既存値を保持します（未指定フィールドを上書きしません）
func (r *JobRepository) UpdateJob(ctx context.Context, id uuid.UUID, update models.JobUpdate) error {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	args = append(args, id)

	appendSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		appendSet("status", string(*update.Status))
	}
	if update.Results != nil {
		resultsJSON, err := json.Marshal(update.Results)
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		appendSet("results", resultsJSON)
	}
	if update.RawOutput != nil {
		appendSet("raw_output", *update.RawOutput)
	}
	if update.Error != nil {
		appendSet("error", *update.Error)
	}
	if update.StatusMessage != nil {
		appendSet("status_message", *update.StatusMessage)
	}
	if update.Metadata != nil {
		metadataJSON, err := json.Marshal(update.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		appendSet("metadata", metadataJSON)
	}
	if update.CompletedAt != nil {
		appendSet("completed_at", *update.CompletedAt)
	}

	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}

	return nil
}
