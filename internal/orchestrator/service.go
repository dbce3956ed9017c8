package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/loadpress/loadpress/internal/database"
	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/errors"
	"github.com/loadpress/loadpress/pkg/logging"
	"github.com/loadpress/loadpress/pkg/metrics"
	"github.com/loadpress/loadpress/pkg/types"
)

// Service drives load-test task execution: it owns the task state machine,
// supervises runner processes through a bounded semaphore, and ingests result
// artifacts when a run completes.
type Service struct {
	tasks    database.TaskRepositoryInterface
	results  database.ResultRepositoryInterface
	taskLogs database.TaskLogRepositoryInterface
	runner   *Runner
	registry *Registry
	cfg      *config.RunnerConfig
	metrics  *metrics.Metrics
	logger   *logging.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewService creates a new orchestration service
func NewService(
	tasks database.TaskRepositoryInterface,
	results database.ResultRepositoryInterface,
	taskLogs database.TaskLogRepositoryInterface,
	runner *Runner,
	cfg *config.RunnerConfig,
	m *metrics.Metrics,
	logger *logging.Logger,
) *Service {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	return &Service{
		tasks:    tasks,
		results:  results,
		taskLogs: taskLogs,
		runner:   runner,
		registry: NewRegistry(),
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// CreateTask persists a new pending task with no side effects
func (s *Service) CreateTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	if task.TargetURL == "" {
		return nil, errors.NewValidationError("target URL is required")
	}
	if task.Concurrency < 1 {
		return nil, errors.NewValidationError("concurrency must be at least 1")
	}
	if task.Threads < 1 {
		task.Threads = s.cfg.DefaultThreads
	}
	task.Status = types.TaskStatusPending

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask retrieves a task by ID
func (s *Service) GetTask(ctx context.Context, taskID int64) (*types.Task, error) {
	return s.tasks.GetByID(ctx, taskID)
}

// ListTasks retrieves a filtered, paginated task list
func (s *Service) ListTasks(ctx context.Context, filter *database.TaskFilter, pagination *database.Pagination) ([]*types.Task, int64, error) {
	return s.tasks.List(ctx, filter, pagination)
}

// GetTaskLogs retrieves the execution trace for a task
func (s *Service) GetTaskLogs(ctx context.Context, taskID int64, pagination *database.Pagination) ([]*types.TaskLogEntry, int64, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		return nil, 0, err
	}
	return s.taskLogs.ListByTaskID(ctx, taskID, pagination)
}

// GetResult retrieves the structured result for a task
func (s *Service) GetResult(ctx context.Context, taskID int64) (*types.Result, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.results.GetByTaskID(ctx, taskID)
}

// StartTask begins execution of a pending task. The call returns once the
// task is accepted; the runner executes in the background with its own
// context, so the caller's request lifetime does not bound the load test.
func (s *Service) StartTask(ctx context.Context, taskID int64) (*types.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status != types.TaskStatusPending {
		return nil, errors.NewInvalidStateError("task is not pending").
			WithDetail("status", task.Status)
	}

	s.wg.Add(1)
	go s.execute(task.ID)

	return task, nil
}

// CancelTask cancels a running task by terminating its live process through
// the registry; the execution goroutine then records the cancelled status.
// Only running tasks are cancellable.
func (s *Service) CancelTask(ctx context.Context, taskID int64) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	if task.Status != types.TaskStatusRunning {
		return errors.NewInvalidStateError("only running tasks can be cancelled").
			WithDetail("status", task.Status)
	}

	if s.registry.Cancel(taskID) {
		s.logger.LogTaskEvent(ctx, "task_cancel_signalled", taskID, nil)
		return nil
	}

	// Running in the database but not live here: the process already exited
	// and the terminal status write is in flight, or the row was left behind
	// by a crash. The conditional update loses a finished race cleanly.
	ok, err := s.tasks.TransitionStatus(ctx, taskID, types.TaskStatusRunning, types.TaskStatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewInvalidStateError("task state changed during cancellation")
	}

	s.logger.LogTaskEvent(ctx, "task_cancelled", taskID, nil)
	return nil
}

// RetryTask creates a fresh pending task from a failed or cancelled one and
// starts it. The original task keeps its terminal status and history.
func (s *Service) RetryTask(ctx context.Context, taskID, userID int64) (*types.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status != types.TaskStatusFailed && task.Status != types.TaskStatusCancelled {
		return nil, errors.NewInvalidStateError("only failed or cancelled tasks can be retried").
			WithDetail("status", task.Status)
	}

	retry := &types.Task{
		ApplyID:     task.ApplyID,
		TargetURL:   task.TargetURL,
		Concurrency: task.Concurrency,
		Duration:    task.Duration,
		Threads:     task.Threads,
		ScriptPath:  task.ScriptPath,
		Status:      types.TaskStatusPending,
		CreatedBy:   userID,
	}

	if err := s.tasks.Create(ctx, retry); err != nil {
		return nil, err
	}

	s.logger.LogTaskEvent(ctx, "task_retried", retry.ID, map[string]interface{}{
		"original_task_id": taskID,
	})

	s.wg.Add(1)
	go s.execute(retry.ID)

	return retry, nil
}

// RunningCount returns the number of live executions
func (s *Service) RunningCount() int {
	return s.registry.Len()
}

// Stop waits for in-flight executions to finish or the context to expire
func (s *Service) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.NewTimeoutError("orchestrator shutdown")
	}
}

// execute runs a task to a terminal status. It owns its own context so the
// spawning HTTP request can return immediately.
func (s *Service) execute(taskID int64) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DefaultTimeout)
	defer cancel()

	// Hold a semaphore slot for the whole run. Tasks stay pending while the
	// slot is contended. A task that never got a slot stays pending so it can
	// be started again once the pool drains.
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.appendLog(taskID, types.LogLevelError, "timed out waiting for an execution slot; task remains pending")
		s.logger.LogTaskEvent(ctx, "task_slot_timeout", taskID, nil)
		return
	}
	defer func() { <-s.sem }()

	started, err := s.tasks.TransitionStatus(ctx, taskID, types.TaskStatusPending, types.TaskStatusRunning)
	if err != nil {
		s.logger.LogError(ctx, err, "failed to transition task to running", map[string]interface{}{
			"task_id": taskID,
		})
		return
	}
	if !started {
		// Cancelled while queued.
		return
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		s.finish(taskID, types.TaskStatusFailed, time.Time{})
		return
	}

	stamped, err := s.tasks.SetStarted(ctx, taskID)
	if err != nil {
		s.logger.LogError(ctx, err, "failed to stamp task start", map[string]interface{}{
			"task_id": taskID,
		})
	} else if !stamped {
		// The task left the running state between the transition above and
		// the stamp: a cancellation won. Do not run.
		s.logger.LogTaskEvent(ctx, "task_cancelled_before_start", taskID, nil)
		return
	}

	s.registry.Register(taskID, cancel)
	defer s.registry.Unregister(taskID)

	s.metrics.TaskStarted()
	defer s.metrics.TaskFinished()

	startedAt := time.Now()
	s.logger.LogTaskEvent(ctx, "task_started", taskID, map[string]interface{}{
		"target_url":  task.TargetURL,
		"concurrency": task.Concurrency,
		"duration":    task.Duration,
	})
	s.appendLog(taskID, types.LogLevelInfo, "load test started")

	runErr := s.runner.Run(ctx, task, func(level, message string) {
		s.appendLog(taskID, level, message)
	})

	switch {
	case runErr == nil:
		s.ingestResult(taskID, startedAt)
	case ctx.Err() == context.Canceled:
		s.appendLog(taskID, types.LogLevelWarning, "load test cancelled")
		s.finish(taskID, types.TaskStatusCancelled, startedAt)
	case ctx.Err() == context.DeadlineExceeded:
		s.appendLog(taskID, types.LogLevelError, "load test timed out")
		s.finish(taskID, types.TaskStatusFailed, startedAt)
	default:
		s.appendLog(taskID, types.LogLevelError, runErr.Error())
		s.finish(taskID, types.TaskStatusFailed, startedAt)
	}
}

// ingestResult parses the artifact a clean run must leave behind and stores
// the task's single Result row. Any ingestion failure is a task failure.
func (s *Service) ingestResult(taskID int64, startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	parsed, raw, err := s.runner.ReadArtifact(taskID)
	if err != nil {
		s.logger.LogError(ctx, err, "result artifact ingestion failed", map[string]interface{}{
			"task_id": taskID,
		})
		s.appendLog(taskID, types.LogLevelError, err.Error())
		s.finish(taskID, types.TaskStatusFailed, startedAt)
		return
	}

	result := &types.Result{
		TaskID:             taskID,
		QPS:                parsed.QPS,
		AvgLatencyMS:       parsed.AvgLatencyMS,
		P95LatencyMS:       parsed.P95LatencyMS,
		P99LatencyMS:       parsed.P99LatencyMS,
		ErrorRate:          parsed.ErrorRate,
		TotalRequests:      parsed.TotalRequests,
		SuccessfulRequests: parsed.SuccessfulRequests,
		FailedRequests:     parsed.FailedRequests,
		DataFilePath:       parsed.DataFilePath,
		RawResultJSON:      json.RawMessage(raw),
	}

	if err := s.results.Create(ctx, result); err != nil {
		if !errors.IsType(err, errors.ErrorTypeConflict) {
			s.logger.LogError(ctx, err, "failed to persist result", map[string]interface{}{
				"task_id": taskID,
			})
			s.appendLog(taskID, types.LogLevelError, "failed to persist result")
			s.finish(taskID, types.TaskStatusFailed, startedAt)
			return
		}
	}

	s.appendLog(taskID, types.LogLevelInfo, "load test completed")
	s.finish(taskID, types.TaskStatusCompleted, startedAt)
}

// finish records a terminal status and emits execution metrics.
func (s *Service) finish(taskID int64, status string, startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.tasks.SetFinished(ctx, taskID, status); err != nil {
		s.logger.LogError(ctx, err, "failed to record terminal task status", map[string]interface{}{
			"task_id": taskID,
			"status":  status,
		})
	}

	duration := time.Duration(0)
	if !startedAt.IsZero() {
		duration = time.Since(startedAt)
	}
	s.metrics.RecordTask(status, duration)

	s.logger.LogTaskEvent(ctx, "task_finished", taskID, map[string]interface{}{
		"status":   status,
		"duration": duration.String(),
	})
}

// appendLog persists one execution trace line. Trace writes never fail a
// task; a lost line is logged and dropped.
func (s *Service) appendLog(taskID int64, level, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &types.TaskLogEntry{
		TaskID:   taskID,
		LogLevel: level,
		Message:  message,
	}
	if err := s.taskLogs.Append(ctx, entry); err != nil {
		s.logger.LogError(ctx, err, "failed to append task log", map[string]interface{}{
			"task_id": taskID,
		})
	}
}
