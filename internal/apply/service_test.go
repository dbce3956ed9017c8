package apply

import (
	"context"
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

// fakeTxRunner runs the transaction body directly; the fakes below ignore
// the tx handle.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTransaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

type fakeApplyRepo struct {
	mu      sync.Mutex
	nextID  int64
	applies map[int64]*types.ApplyRequest
}

func newFakeApplyRepo() *fakeApplyRepo {
	return &fakeApplyRepo{nextID: 1, applies: make(map[int64]*types.ApplyRequest)}
}

func (f *fakeApplyRepo) Create(ctx context.Context, apply *types.ApplyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	apply.ID = f.nextID
	f.nextID++
	apply.CreatedAt = time.Now()
	apply.UpdatedAt = apply.CreatedAt
	cp := *apply
	f.applies[apply.ID] = &cp
	return nil
}

func (f *fakeApplyRepo) GetByID(ctx context.Context, id int64) (*types.ApplyRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.applies[id]
	if !ok {
		return nil, errors.NewNotFoundError("apply request")
	}
	cp := *a
	return &cp, nil
}

func (f *fakeApplyRepo) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*types.ApplyRequest, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeApplyRepo) HasPendingForDomain(ctx context.Context, userID int64, domain string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.applies {
		if a.UserID == userID && a.Domain == domain && a.AuditStatus == types.AuditStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeApplyRepo) UpdateAudit(ctx context.Context, tx *sqlx.Tx, apply *types.ApplyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.applies[apply.ID]; !ok {
		return errors.NewNotFoundError("apply request")
	}
	cp := *apply
	f.applies[apply.ID] = &cp
	return nil
}

func (f *fakeApplyRepo) List(ctx context.Context, filter *database.ApplyFilter, pagination *database.Pagination) ([]*types.ApplyRequest, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.ApplyRequest
	for _, a := range f.applies {
		if filter != nil && filter.UserID != nil && a.UserID != *filter.UserID {
			continue
		}
		if filter != nil && filter.AuditStatus != "" && a.AuditStatus != filter.AuditStatus {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

type fakeTaskRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  []*types.Task
	fail   bool
}

func (f *fakeTaskRepo) Create(ctx context.Context, task *types.Task) error {
	return f.CreateTx(ctx, nil, task)
}

func (f *fakeTaskRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, task *types.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.NewInternalError("task insert failed")
	}
	f.nextID++
	task.ID = f.nextID
	cp := *task
	f.tasks = append(f.tasks, &cp)
	return nil
}

func (f *fakeTaskRepo) GetByID(ctx context.Context, id int64) (*types.Task, error) {
	return nil, errors.NewNotFoundError("task")
}

func (f *fakeTaskRepo) UpdateStatus(ctx context.Context, id int64, status string) error { return nil }

func (f *fakeTaskRepo) TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	return false, nil
}

func (f *fakeTaskRepo) SetStarted(ctx context.Context, id int64) (bool, error) { return true, nil }

func (f *fakeTaskRepo) SetFinished(ctx context.Context, id int64, status string) error { return nil }

func (f *fakeTaskRepo) List(ctx context.Context, filter *database.TaskFilter, pagination *database.Pagination) ([]*types.Task, int64, error) {
	return nil, 0, nil
}

func (f *fakeTaskRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	return 0, nil
}

func newTestService(t *testing.T) (*Service, *fakeApplyRepo, *fakeTaskRepo) {
	t.Helper()
	applies := newFakeApplyRepo()
	tasks := &fakeTaskRepo{}
	logger, err := logging.NewLogger(nil)
	require.NoError(t, err)

	cfg := &config.RunnerConfig{DefaultThreads: 4}
	svc := NewService(fakeTxRunner{}, applies, tasks, cfg, metrics.NewMetrics(&metrics.Config{Enabled: false}), logger)
	return svc, applies, tasks
}

func validSubmit() *SubmitRequest {
	return &SubmitRequest{
		ApplicationName: "storefront",
		Domain:          "shop.example.com",
		URL:             "https://shop.example.com/api/checkout",
		Method:          "POST",
		RecordInfo:      "ICP-2024-001",
		Concurrency:     50,
		Duration:        "60s",
	}
}

func TestSubmit(t *testing.T) {
	svc, _, _ := newTestService(t)

	apply, err := svc.Submit(context.Background(), 1, validSubmit())
	require.NoError(t, err)
	assert.Equal(t, types.AuditStatusPending, apply.AuditStatus)
	assert.Equal(t, int64(1), apply.UserID)
	assert.NotZero(t, apply.ID)
}

func TestSubmit_InvalidDomain(t *testing.T) {
	svc, _, _ := newTestService(t)

	for _, domain := range []string{"", "not a domain", "no-tld", "http://example.com", "example..com"} {
		req := validSubmit()
		req.Domain = domain
		_, err := svc.Submit(context.Background(), 1, req)
		assert.Error(t, err, "domain %q should be rejected", domain)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	}
}

func TestSubmit_DuplicatePending(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), 1, validSubmit())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), 1, validSubmit())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	// A different user may submit for the same domain.
	_, err = svc.Submit(context.Background(), 2, validSubmit())
	assert.NoError(t, err)
}

func TestAudit_ApproveSpawnsTask(t *testing.T) {
	svc, _, tasks := newTestService(t)

	apply, err := svc.Submit(context.Background(), 1, validSubmit())
	require.NoError(t, err)

	comment := "looks good"
	audited, err := svc.Audit(context.Background(), apply.ID, 9, &AuditRequest{Approved: true, Comment: &comment})
	require.NoError(t, err)

	assert.Equal(t, types.AuditStatusApproved, audited.AuditStatus)
	require.NotNil(t, audited.AuditUserID)
	assert.Equal(t, int64(9), *audited.AuditUserID)
	require.NotNil(t, audited.AuditTime)

	require.Len(t, tasks.tasks, 1)
	task := tasks.tasks[0]
	assert.Equal(t, apply.ID, task.ApplyID)
	assert.Equal(t, "https://shop.example.com", task.TargetURL)
	assert.Equal(t, 50, task.Concurrency)
	assert.Equal(t, "60s", task.Duration)
	assert.Equal(t, 4, task.Threads)
	assert.Equal(t, types.TaskStatusPending, task.Status)
	assert.Equal(t, int64(9), task.CreatedBy)
}

func TestAudit_RejectSpawnsNothing(t *testing.T) {
	svc, _, tasks := newTestService(t)

	apply, err := svc.Submit(context.Background(), 1, validSubmit())
	require.NoError(t, err)

	audited, err := svc.Audit(context.Background(), apply.ID, 9, &AuditRequest{Approved: false})
	require.NoError(t, err)
	assert.Equal(t, types.AuditStatusRejected, audited.AuditStatus)
	assert.Empty(t, tasks.tasks)
}

func TestAudit_AlreadyAudited(t *testing.T) {
	svc, _, _ := newTestService(t)

	apply, err := svc.Submit(context.Background(), 1, validSubmit())
	require.NoError(t, err)

	_, err = svc.Audit(context.Background(), apply.ID, 9, &AuditRequest{Approved: true})
	require.NoError(t, err)

	_, err = svc.Audit(context.Background(), apply.ID, 9, &AuditRequest{Approved: false})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidState))
}

func TestAudit_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Audit(context.Background(), 404, 9, &AuditRequest{Approved: true})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestAudit_TaskInsertFailureRollsBack(t *testing.T) {
	svc, applies, tasks := newTestService(t)

	apply, err := svc.Submit(context.Background(), 1, validSubmit())
	require.NoError(t, err)

	tasks.fail = true
	_, err = svc.Audit(context.Background(), apply.ID, 9, &AuditRequest{Approved: true})
	require.Error(t, err)

	// With a real transaction the audit write would roll back too; the fake
	// runner has no rollback, so only the error propagation is asserted here.
	_ = applies
}

func TestGet_OwnerScoping(t *testing.T) {
	svc, _, _ := newTestService(t)

	apply, err := svc.Submit(context.Background(), 1, validSubmit())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), apply.ID, 1, false)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), apply.ID, 2, false)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthorization))

	_, err = svc.Get(context.Background(), apply.ID, 2, true)
	assert.NoError(t, err)
}

func TestList_OwnerScoping(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), 1, validSubmit())
	require.NoError(t, err)

	other := validSubmit()
	other.Domain = "api.example.org"
	_, err = svc.Submit(context.Background(), 2, other)
	require.NoError(t, err)

	mine, total, err := svc.List(context.Background(), 1, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(1), mine[0].UserID)

	all, total, err := svc.List(context.Background(), 1, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)
}
