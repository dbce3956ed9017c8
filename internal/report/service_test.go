package report

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadpress/loadpress/internal/database"
	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/errors"
	"github.com/loadpress/loadpress/pkg/logging"
	"github.com/loadpress/loadpress/pkg/metrics"
	"github.com/loadpress/loadpress/pkg/types"
)

type fakeTaskRepo struct {
	tasks map[int64]*types.Task
}

func (f *fakeTaskRepo) Create(ctx context.Context, task *types.Task) error { return nil }
func (f *fakeTaskRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, task *types.Task) error {
	return nil
}
func (f *fakeTaskRepo) GetByID(ctx context.Context, id int64) (*types.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, errors.NewNotFoundError("task")
	}
	return t, nil
}
func (f *fakeTaskRepo) UpdateStatus(ctx context.Context, id int64, status string) error { return nil }
func (f *fakeTaskRepo) TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	return false, nil
}
func (f *fakeTaskRepo) SetStarted(ctx context.Context, id int64) (bool, error)         { return true, nil }
func (f *fakeTaskRepo) SetFinished(ctx context.Context, id int64, status string) error { return nil }
func (f *fakeTaskRepo) List(ctx context.Context, filter *database.TaskFilter, pagination *database.Pagination) ([]*types.Task, int64, error) {
	return nil, 0, nil
}
func (f *fakeTaskRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	return 0, nil
}

type fakeResultRepo struct {
	results map[int64]*types.Result
}

func (f *fakeResultRepo) Create(ctx context.Context, result *types.Result) error { return nil }
func (f *fakeResultRepo) GetByTaskID(ctx context.Context, taskID int64) (*types.Result, error) {
	r, ok := f.results[taskID]
	if !ok {
		return nil, errors.NewNotFoundError("result")
	}
	return r, nil
}

type fakeReportRepo struct {
	mu      sync.Mutex
	nextID  int64
	reports map[int64]*types.Report
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{nextID: 1, reports: make(map[int64]*types.Report)}
}

func (f *fakeReportRepo) Create(ctx context.Context, report *types.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.TaskID == report.TaskID && r.ReportType == report.ReportType {
			return errors.NewConflictError("report already exists")
		}
	}
	report.ID = f.nextID
	f.nextID++
	report.CreatedAt = time.Now()
	cp := *report
	f.reports[report.ID] = &cp
	return nil
}

func (f *fakeReportRepo) GetByID(ctx context.Context, id int64) (*types.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return nil, errors.NewNotFoundError("report")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReportRepo) GetByTaskAndType(ctx context.Context, taskID int64, reportType string) (*types.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.TaskID == taskID && r.ReportType == reportType {
			cp := *r
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("report")
}

func (f *fakeReportRepo) GetByTaskID(ctx context.Context, taskID int64) ([]*types.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Report
	for _, r := range f.reports {
		if r.TaskID == taskID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeReportRepo) Update(ctx context.Context, report *types.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[report.ID]; !ok {
		return errors.NewNotFoundError("report")
	}
	cp := *report
	f.reports[report.ID] = &cp
	return nil
}

func (f *fakeReportRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[id]; !ok {
		return errors.NewNotFoundError("report")
	}
	delete(f.reports, id)
	return nil
}

func (f *fakeReportRepo) List(ctx context.Context, filter *database.ReportFilter, pagination *database.Pagination) ([]*types.Report, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Report
	for _, r := range f.reports {
		cp := *r
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func float64Ptr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64       { return &v }

func writeArtifact(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "task_1_data.csv")
	csv := "item,concurrency,qps,avg_latency_ms,errors,status_2xx\ncheckout,50,500.25,8.50,12,14988\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))
	return path
}

func newTestService(t *testing.T) (*Service, *fakeTaskRepo, *fakeResultRepo, *fakeReportRepo, string) {
	t.Helper()
	uploadDir := t.TempDir()
	dataDir := t.TempDir()

	artifact := writeArtifact(t, dataDir)

	tasks := &fakeTaskRepo{tasks: map[int64]*types.Task{
		1: {
			ID:          1,
			ApplyID:     5,
			TargetURL:   "https://shop.example.com",
			Concurrency: 50,
			Duration:    "60s",
			Threads:     4,
			Status:      types.TaskStatusCompleted,
		},
	}}
	results := &fakeResultRepo{results: map[int64]*types.Result{
		1: {
			ID:            1,
			TaskID:        1,
			QPS:           float64Ptr(500.25),
			AvgLatencyMS:  float64Ptr(8.5),
			TotalRequests: int64Ptr(15000),
			DataFilePath:  &artifact,
		},
	}}
	reports := newFakeReportRepo()
	logger, err := logging.NewLogger(nil)
	require.NoError(t, err)

	cfg := &config.StorageConfig{UploadDir: uploadDir, LogicalPrefix: "/uploads"}
	svc := NewService(tasks, results, reports, cfg, metrics.NewMetrics(&metrics.Config{Enabled: false}), logger)
	return svc, tasks, results, reports, uploadDir
}

func TestGenerate_AllKinds(t *testing.T) {
	svc, _, _, _, uploadDir := newTestService(t)

	reports, err := svc.Generate(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, reports, 4)

	kinds := make(map[string]*types.Report)
	for _, r := range reports {
		kinds[r.ReportType] = r
	}

	for _, kind := range []string{types.ReportTypeImage, types.ReportTypePDF, types.ReportTypeExcel, types.ReportTypeMarkdown} {
		rep, ok := kinds[kind]
		require.True(t, ok, "missing report kind %s", kind)
		assert.Equal(t, types.ReportStatusCompleted, rep.Status)
		assert.NotEmpty(t, rep.FilePath)
		assert.True(t, rep.FilePath[0] == '/', "path should be logical")
		require.NotNil(t, rep.FileSize)
		assert.Greater(t, *rep.FileSize, int64(0))
		require.NotNil(t, rep.GeneratedAt)

		// The logical path maps back to a real file under the upload root.
		physical := filepath.Join(uploadDir, rep.FilePath[len("/uploads"):])
		_, err := os.Stat(physical)
		assert.NoError(t, err, "report file for %s should exist", kind)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	svc, _, _, repo, _ := newTestService(t)

	first, err := svc.Generate(context.Background(), 1, []string{types.ReportTypeMarkdown})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Generate(context.Background(), 1, []string{types.ReportTypeMarkdown})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, len(repo.reports), 1)
}

func TestGenerate_FailedRowIsRetried(t *testing.T) {
	svc, _, _, repo, _ := newTestService(t)

	// Seed a failed row left behind by an earlier attempt.
	failed := &types.Report{
		TaskID:     1,
		ApplyID:    5,
		ReportType: types.ReportTypeMarkdown,
		Status:     types.ReportStatusFailed,
	}
	require.NoError(t, repo.Create(context.Background(), failed))

	reports, err := svc.Generate(context.Background(), 1, []string{types.ReportTypeMarkdown})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, failed.ID, reports[0].ID, "failed row should be regenerated in place")
	assert.Equal(t, types.ReportStatusCompleted, reports[0].Status)
	assert.NotEmpty(t, reports[0].FilePath)
}

func TestGenerate_TaskNotCompleted(t *testing.T) {
	svc, tasks, _, _, _ := newTestService(t)
	tasks.tasks[1].Status = types.TaskStatusRunning

	_, err := svc.Generate(context.Background(), 1, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidState))
}

func TestGenerate_TaskNotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Generate(context.Background(), 404, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestGenerate_MissingArtifact(t *testing.T) {
	svc, _, results, _, _ := newTestService(t)
	results.results[1].DataFilePath = nil

	_, err := svc.Generate(context.Background(), 1, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingArtifact))
}

func TestGenerate_ArtifactFileGone(t *testing.T) {
	svc, _, results, _, _ := newTestService(t)
	gone := "/nonexistent/task_1_data.csv"
	results.results[1].DataFilePath = &gone

	_, err := svc.Generate(context.Background(), 1, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMissingArtifact))
}

func TestGenerate_UnsupportedKind(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Generate(context.Background(), 1, []string{"hologram"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestDelete_RemovesFileAndRow(t *testing.T) {
	svc, _, _, repo, uploadDir := newTestService(t)

	reports, err := svc.Generate(context.Background(), 1, []string{types.ReportTypeMarkdown})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	rep := reports[0]

	physical := filepath.Join(uploadDir, rep.FilePath[len("/uploads"):])
	_, err = os.Stat(physical)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), rep.ID))

	_, err = os.Stat(physical)
	assert.True(t, os.IsNotExist(err))

	_, err = repo.GetByID(context.Background(), rep.ID)
	assert.Error(t, err)
}

func TestDelete_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	err := svc.Delete(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
