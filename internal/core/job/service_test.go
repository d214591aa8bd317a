package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarsrc/scholar-source/pkg/models"
	"github.com/scholarsrc/scholar-source/pkg/repository"
)

// fakeRepo はテスト用のインメモリ Repository 実装
// ステータス書き込みの履歴を記録し、遷移順序の検証に使う
type fakeRepo struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*models.Job
	history map[uuid.UUID][]models.JobStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		jobs:    make(map[uuid.UUID]*models.Job),
		history: make(map[uuid.UUID][]models.JobStatus),
	}
}

func (r *fakeRepo) CreateJob(_ context.Context, inputs models.CourseInputs, searchTitle string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New()
	r.jobs[id] = &models.Job{
		ID:          id,
		Status:      models.JobStatusPending,
		Inputs:      inputs,
		SearchTitle: searchTitle,
		CreatedAt:   time.Now().UTC(),
	}
	r.history[id] = []models.JobStatus{models.JobStatusPending}
	return id, nil
}

func (r *fakeRepo) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeRepo) UpdateJob(_ context.Context, id uuid.UUID, update models.JobUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	if update.Status != nil {
		j.Status = *update.Status
		r.history[id] = append(r.history[id], *update.Status)
	}
	if update.Results != nil {
		j.Results = update.Results
	}
	if update.RawOutput != nil {
		j.RawOutput = update.RawOutput
	}
	if update.Error != nil {
		j.Error = update.Error
	}
	if update.StatusMessage != nil {
		j.StatusMessage = update.StatusMessage
	}
	if update.Metadata != nil {
		j.Metadata = update.Metadata
	}
	if update.CompletedAt != nil {
		j.CompletedAt = update.CompletedAt
	}
	return nil
}

func (r *fakeRepo) statusHistory(id uuid.UUID) []models.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.JobStatus(nil), r.history[id]...)
}

// fakePipeline はテスト用の Pipeline 実装
type fakePipeline struct {
	mu            sync.Mutex
	analyzeCalls  int
	discoverCalls int

	analysis    models.CourseAnalysis
	analyzeErr  error
	report      string
	discoverErr error

	started chan struct{} // DiscoverResources 開始を通知（任意、バッファ付き）
	release chan struct{} // DiscoverResources をブロック（任意）
}

func (p *fakePipeline) AnalyzeCourse(_ context.Context, _ models.CourseInputs) (models.CourseAnalysis, error) {
	p.mu.Lock()
	p.analyzeCalls++
	p.mu.Unlock()

	if p.analyzeErr != nil {
		return models.CourseAnalysis{}, p.analyzeErr
	}
	return p.analysis, nil
}

func (p *fakePipeline) DiscoverResources(ctx context.Context, _ models.CourseInputs, _ models.CourseAnalysis) (string, error) {
	p.mu.Lock()
	p.discoverCalls++
	started, release := p.started, p.release
	p.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if p.discoverErr != nil {
		return "", p.discoverErr
	}
	return p.report, nil
}

func (p *fakePipeline) calls() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.analyzeCalls, p.discoverCalls
}

// fakeCache はテスト用の AnalysisCache 実装
type fakeCache struct {
	mu      sync.Mutex
	entries map[models.CacheType]json.RawMessage
	saves   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[models.CacheType]json.RawMessage)}
}

func (c *fakeCache) Lookup(_ context.Context, _ models.CourseInputs, cacheType models.CacheType, bypass bool) mo.Option[json.RawMessage] {
	if bypass {
		return mo.None[json.RawMessage]()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[cacheType]
	if !ok {
		return mo.None[json.RawMessage]()
	}
	return mo.Some(raw)
}

func (c *fakeCache) Save(_ context.Context, _ models.CourseInputs, cacheType models.CacheType, results any) {
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheType] = raw
	c.saves++
}

func (c *fakeCache) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

const testReport = `**1. Introduction to Linear Algebra** (Type: Open Textbook)
- **Link:** https://openstax.org/details/books/linear-algebra
- **Source:** OpenStax
- **What it covers:** Vectors, matrices, and eigenvalues with full exercises
`

func testJobInputs() models.CourseInputs {
	return models.CourseInputs{
		CourseName:     "Linear Algebra",
		UniversityName: "MIT",
		CourseURL:      "https://ocw.mit.edu/18-06",
	}
}

func waitTerminal(t *testing.T, svc *Service, id uuid.UUID) *models.Job {
	t.Helper()

	var j *models.Job
	require.Eventually(t, func() bool {
		got, err := svc.Get(context.Background(), id)
		if err != nil {
			return false
		}
		j = got
		return got.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	return j
}

func TestSubmitRejectsEmptyInputs(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakePipeline{}, newFakeCache(), 2)
	defer svc.Close()

	_, err := svc.Submit(context.Background(), models.CourseInputs{ExcludedSites: "chegg.com"}, false)
	assert.ErrorIs(t, err, ErrInvalidInputs)

	// バリデーション失敗時はレコードが作成されない
	assert.Empty(t, repo.jobs)
}

func TestSubmitCompletesSuccessfully(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	pipeline := &fakePipeline{
		analysis: models.CourseAnalysis{TextbookTitle: "Introduction to Linear Algebra", Topics: []string{"vectors"}},
		report:   testReport,
	}
	svc := NewService(repo, pipeline, cache, 2)
	defer svc.Close()

	id, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)

	j := waitTerminal(t, svc, id)
	assert.Equal(t, models.JobStatusCompleted, j.Status)
	require.Len(t, j.Results, 1)
	assert.Equal(t, "Introduction to Linear Algebra", j.Results[0].Title)
	require.NotNil(t, j.RawOutput)
	assert.Equal(t, testReport, *j.RawOutput)
	require.NotNil(t, j.CompletedAt)
	assert.Nil(t, j.Error)

	assert.Equal(t, 1, j.Metadata["resource_count"])
	assert.Equal(t, false, j.Metadata["cache_used"])

	// 新規分析はキャッシュに保存される
	assert.Equal(t, 1, cache.saveCount())
}

func TestStatusSequenceIsMonotonic(t *testing.T) {
	repo := newFakeRepo()
	pipeline := &fakePipeline{report: testReport}
	svc := NewService(repo, pipeline, newFakeCache(), 2)
	defer svc.Close()

	id, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)
	waitTerminal(t, svc, id)

	history := repo.statusHistory(id)
	require.NotEmpty(t, history)
	assert.Equal(t, models.JobStatusPending, history[0])
	assert.Equal(t, models.JobStatusCompleted, history[len(history)-1])

	// 観測される状態列は常に前進する
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].CanTransitionTo(history[i]),
			"%s -> %s は後退遷移", history[i-1], history[i])
	}
}

func TestCacheHitSkipsAnalysisStage(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()

	cached, err := json.Marshal(models.CourseAnalysis{TextbookTitle: "Cached Title", Topics: []string{"vectors"}})
	require.NoError(t, err)
	cache.entries[models.CacheTypeAnalysis] = cached

	pipeline := &fakePipeline{report: testReport}
	svc := NewService(repo, pipeline, cache, 2)
	defer svc.Close()

	id, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)

	j := waitTerminal(t, svc, id)
	assert.Equal(t, models.JobStatusCompleted, j.Status)
	assert.Equal(t, true, j.Metadata["cache_used"])

	// キャッシュヒット時は分析ステージが実行されず、再保存もされない
	analyzeCalls, discoverCalls := pipeline.calls()
	assert.Zero(t, analyzeCalls)
	assert.Equal(t, 1, discoverCalls)
	assert.Zero(t, cache.saveCount())
}

func TestSecondRunReusesSavedAnalysis(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()
	pipeline := &fakePipeline{
		analysis: models.CourseAnalysis{TextbookTitle: "Linear Algebra"},
		report:   testReport,
	}
	svc := NewService(repo, pipeline, cache, 2)
	defer svc.Close()

	// 1回目: 分析を実行してキャッシュに保存
	first, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, waitTerminal(t, svc, first).Status)

	// 2回目: 同一入力は保存済みの分析を再利用する
	second, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)
	j := waitTerminal(t, svc, second)

	assert.Equal(t, models.JobStatusCompleted, j.Status)
	assert.Equal(t, true, j.Metadata["cache_used"])

	analyzeCalls, discoverCalls := pipeline.calls()
	assert.Equal(t, 1, analyzeCalls)
	assert.Equal(t, 2, discoverCalls)
	assert.Equal(t, 1, cache.saveCount())
}

func TestBypassCacheForcesFreshAnalysis(t *testing.T) {
	repo := newFakeRepo()
	cache := newFakeCache()

	cached, err := json.Marshal(models.CourseAnalysis{TextbookTitle: "Cached Title"})
	require.NoError(t, err)
	cache.entries[models.CacheTypeAnalysis] = cached

	pipeline := &fakePipeline{report: testReport}
	svc := NewService(repo, pipeline, cache, 2)
	defer svc.Close()

	id, err := svc.Submit(context.Background(), testJobInputs(), true)
	require.NoError(t, err)

	j := waitTerminal(t, svc, id)
	assert.Equal(t, models.JobStatusCompleted, j.Status)
	assert.Equal(t, false, j.Metadata["cache_used"])

	analyzeCalls, _ := pipeline.calls()
	assert.Equal(t, 1, analyzeCalls)
}

func TestPipelineFailureProducesUserFacingError(t *testing.T) {
	repo := newFakeRepo()
	pipeline := &fakePipeline{analyzeErr: errors.New("dial tcp: connection refused")}
	svc := NewService(repo, pipeline, newFakeCache(), 2)
	defer svc.Close()

	id, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)

	j := waitTerminal(t, svc, id)
	assert.Equal(t, models.JobStatusFailed, j.Status)
	require.NotNil(t, j.CompletedAt)

	// エラーフィールドはユーザー向けメッセージのみ、元のエラーは metadata に残る
	require.NotNil(t, j.Error)
	assert.NotContains(t, *j.Error, "dial tcp")
	assert.Contains(t, *j.Error, "Unable to connect")
	assert.Contains(t, j.Metadata["technical_error"], "connection refused")
}

func TestLeadingErrorReportFailsJob(t *testing.T) {
	repo := newFakeRepo()
	pipeline := &fakePipeline{report: "ERROR: Cannot access the course page\nNo resources were found."}
	svc := NewService(repo, pipeline, newFakeCache(), 2)
	defer svc.Close()

	id, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)

	j := waitTerminal(t, svc, id)
	assert.Equal(t, models.JobStatusFailed, j.Status)
	require.NotNil(t, j.Error)
	assert.Equal(t, "Cannot access the course page", *j.Error)
	require.NotNil(t, j.StatusMessage)
	assert.Equal(t, "Failed to access course or book resources", *j.StatusMessage)
}

func TestZeroResourcesIsStillCompleted(t *testing.T) {
	repo := newFakeRepo()
	pipeline := &fakePipeline{report: "The search finished but nothing relevant was located."}
	svc := NewService(repo, pipeline, newFakeCache(), 2)
	defer svc.Close()

	id, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)

	j := waitTerminal(t, svc, id)
	assert.Equal(t, models.JobStatusCompleted, j.Status)
	assert.NotNil(t, j.Results)
	assert.Empty(t, j.Results)
	assert.Equal(t, 0, j.Metadata["resource_count"])
}

func TestCancelRunningJob(t *testing.T) {
	repo := newFakeRepo()
	pipeline := &fakePipeline{
		report:  testReport,
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc := NewService(repo, pipeline, newFakeCache(), 2)
	defer svc.Close()

	id, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)

	// 探索ステージでブロックするのを待ってからキャンセルする
	select {
	case <-pipeline.started:
	case <-time.After(5 * time.Second):
		t.Fatal("探索ステージが開始されなかった")
	}

	status, err := svc.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, status)

	j := waitTerminal(t, svc, id)
	assert.Equal(t, models.JobStatusCancelled, j.Status)
	require.NotNil(t, j.Error)
	assert.Equal(t, "Job was cancelled before completion", *j.Error)
	require.NotNil(t, j.CompletedAt)

	// 終端後の結果書き込みは拒否され、cancelled のまま変わらない
	time.Sleep(50 * time.Millisecond)
	j, err = svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, j.Status)
	assert.Empty(t, j.Results)
}

func TestCancelTerminalJobIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	pipeline := &fakePipeline{report: testReport}
	svc := NewService(repo, pipeline, newFakeCache(), 2)
	defer svc.Close()

	id, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)
	waitTerminal(t, svc, id)

	// 完了済みジョブへのキャンセルは現在の状態をそのまま返す
	status, err := svc.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, status)

	j, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, j.Status)
	assert.Nil(t, j.Error)
}

func TestCancelUnknownJob(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakePipeline{}, newFakeCache(), 2)
	defer svc.Close()

	_, err := svc.Cancel(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestSecondJobQueuesWhenWorkersBusy(t *testing.T) {
	repo := newFakeRepo()
	pipeline := &fakePipeline{
		report:  testReport,
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	svc := NewService(repo, pipeline, newFakeCache(), 1)
	defer svc.Close()

	first, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)

	select {
	case <-pipeline.started:
	case <-time.After(5 * time.Second):
		t.Fatal("1件目の探索ステージが開始されなかった")
	}

	// ワーカーが塞がっているため2件目は queued で待機する
	second, err := svc.Submit(context.Background(), testJobInputs(), false)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := svc.Get(context.Background(), second)
		return err == nil && j.Status == models.JobStatusQueued
	}, 5*time.Second, 10*time.Millisecond)

	// ワーカーを解放すると両方とも完了する
	close(pipeline.release)
	assert.Equal(t, models.JobStatusCompleted, waitTerminal(t, svc, first).Status)
	assert.Equal(t, models.JobStatusCompleted, waitTerminal(t, svc, second).Status)
}
