package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/loadpress/loadpress/pkg/errors"
	"github.com/loadpress/loadpress/pkg/types"
)

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505), such as a duplicate pending apply for the
// same user and domain.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Repositories bundles all repository implementations for wiring.
type Repositories struct {
	Users    *UserRepository
	Applies  *ApplyRepository
	Tasks    *TaskRepository
	Results  *ResultRepository
	Reports  *ReportRepository
	TaskLogs *TaskLogRepository
}

// NewRepositories creates all repositories backed by the given database.
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Users:    NewUserRepository(db),
		Applies:  NewApplyRepository(db),
		Tasks:    NewTaskRepository(db),
		Results:  NewResultRepository(db),
		Reports:  NewReportRepository(db),
		TaskLogs: NewTaskLogRepository(db),
	}
}

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *types.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Role, user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("username or email already taken").WithCause(err)
		}
		return errors.NewInternalError("failed to create user").WithCause(err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*types.User, error) {
	var user types.User
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("user")
		}
		return nil, errors.NewInternalError("failed to get user by ID").WithCause(err)
	}

	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*types.User, error) {
	var user types.User
	query := `SELECT * FROM users WHERE username = $1`

	err := r.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("user")
		}
		return nil, errors.NewInternalError("failed to get user by username").WithCause(err)
	}

	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	var user types.User
	query := `SELECT * FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("user")
		}
		return nil, errors.NewInternalError("failed to get user by email").WithCause(err)
	}

	return &user, nil
}

// Update updates a user
func (r *UserRepository) Update(ctx context.Context, user *types.User) error {
	query := `
		UPDATE users
		SET email = :email, password_hash = :password_hash, role = :role,
		    is_active = :is_active, updated_at = NOW()
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return errors.NewInternalError("failed to update user").WithCause(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to get rows affected").WithCause(err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError("user")
	}

	return nil
}

// List retrieves a paginated list of users
func (r *UserRepository) List(ctx context.Context, pagination *Pagination) ([]*types.User, int64, error) {
	pagination = DefaultPagination(pagination)

	var users []*types.User
	var total int64

	countQuery := `SELECT COUNT(*) FROM users`
	err := r.db.GetContext(ctx, &total, countQuery)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to count users").WithCause(err)
	}

	offset := (pagination.Page - 1) * pagination.PageSize
	query := `SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	err = r.db.SelectContext(ctx, &users, query, pagination.PageSize, offset)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to list users").WithCause(err)
	}

	return users, total, nil
}

// ApplyRepository handles apply request database operations
type ApplyRepository struct {
	db *DB
}

// NewApplyRepository creates a new apply request repository
func NewApplyRepository(db *DB) *ApplyRepository {
	return &ApplyRepository{db: db}
}

// Create creates a new apply request
func (r *ApplyRepository) Create(ctx context.Context, apply *types.ApplyRequest) error {
	query := `
		INSERT INTO apply_requests (
			user_id, application_name, domain, url, method, record_info,
			description, concurrency, duration, expected_qps, request_body,
			audit_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		apply.UserID, apply.ApplicationName, apply.Domain, apply.URL,
		apply.Method, apply.RecordInfo, apply.Description, apply.Concurrency,
		apply.Duration, apply.ExpectedQPS, apply.RequestBody, apply.AuditStatus,
	).Scan(&apply.ID, &apply.CreatedAt, &apply.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("a pending apply request already exists for this domain").WithCause(err)
		}
		return errors.NewInternalError("failed to create apply request").WithCause(err)
	}

	return nil
}

// GetByID retrieves an apply request by ID
func (r *ApplyRepository) GetByID(ctx context.Context, id int64) (*types.ApplyRequest, error) {
	var apply types.ApplyRequest
	query := `SELECT * FROM apply_requests WHERE id = $1`

	err := r.db.GetContext(ctx, &apply, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("apply request")
		}
		return nil, errors.NewInternalError("failed to get apply request by ID").WithCause(err)
	}

	return &apply, nil
}

// GetByIDForUpdate retrieves an apply request by ID with a row lock held for
// the duration of the transaction. Concurrent audits of the same request
// serialize on this lock.
func (r *ApplyRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*types.ApplyRequest, error) {
	var apply types.ApplyRequest
	query := `SELECT * FROM apply_requests WHERE id = $1 FOR UPDATE`

	err := tx.GetContext(ctx, &apply, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("apply request")
		}
		return nil, errors.NewInternalError("failed to lock apply request").WithCause(err)
	}

	return &apply, nil
}

// HasPendingForDomain reports whether the user already has a pending apply
// request for the given domain.
func (r *ApplyRepository) HasPendingForDomain(ctx context.Context, userID int64, domain string) (bool, error) {
	var count int64
	query := `
		SELECT COUNT(*) FROM apply_requests
		WHERE user_id = $1 AND domain = $2 AND audit_status = $3`

	err := r.db.GetContext(ctx, &count, query, userID, domain, types.AuditStatusPending)
	if err != nil {
		return false, errors.NewInternalError("failed to check pending apply requests").WithCause(err)
	}

	return count > 0, nil
}

// UpdateAudit records an audit decision within the given transaction
func (r *ApplyRepository) UpdateAudit(ctx context.Context, tx *sqlx.Tx, apply *types.ApplyRequest) error {
	query := `
		UPDATE apply_requests
		SET audit_status = :audit_status, audit_user_id = :audit_user_id,
		    audit_comment = :audit_comment, audit_time = :audit_time,
		    updated_at = NOW()
		WHERE id = :id`

	result, err := tx.NamedExecContext(ctx, query, apply)
	if err != nil {
		return errors.NewInternalError("failed to update apply request audit").WithCause(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to get rows affected").WithCause(err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError("apply request")
	}

	return nil
}

// List retrieves a filtered, paginated list of apply requests
func (r *ApplyRepository) List(ctx context.Context, filter *ApplyFilter, pagination *Pagination) ([]*types.ApplyRequest, int64, error) {
	pagination = DefaultPagination(pagination)

	where, args := buildApplyFilter(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM apply_requests` + where
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to count apply requests").WithCause(err)
	}

	offset := (pagination.Page - 1) * pagination.PageSize
	query := fmt.Sprintf(
		`SELECT * FROM apply_requests%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, pagination.PageSize, offset)

	var applies []*types.ApplyRequest
	err = r.db.SelectContext(ctx, &applies, query, args...)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to list apply requests").WithCause(err)
	}

	return applies, total, nil
}

func buildApplyFilter(filter *ApplyFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.AuditStatus != "" {
		args = append(args, filter.AuditStatus)
		conditions = append(conditions, fmt.Sprintf("audit_status = $%d", len(args)))
	}
	if filter.Domain != "" {
		args = append(args, filter.Domain)
		conditions = append(conditions, fmt.Sprintf("domain = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// TaskRepository handles task database operations
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *types.Task) error {
	return r.insert(ctx, r.db.DB, task)
}

// CreateTx creates a new task within the given transaction
func (r *TaskRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, task *types.Task) error {
	return r.insert(ctx, tx, task)
}

func (r *TaskRepository) insert(ctx context.Context, q sqlx.QueryerContext, task *types.Task) error {
	query := `
		INSERT INTO tasks (
			apply_id, target_url, concurrency, duration, threads,
			script_path, status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := q.QueryRowxContext(ctx, query,
		task.ApplyID, task.TargetURL, task.Concurrency, task.Duration,
		task.Threads, task.ScriptPath, task.Status, task.CreatedBy,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return errors.NewInternalError("failed to create task").WithCause(err)
	}

	return nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*types.Task, error) {
	var task types.Task
	query := `SELECT * FROM tasks WHERE id = $1`

	err := r.db.GetContext(ctx, &task, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("task")
		}
		return nil, errors.NewInternalError("failed to get task by ID").WithCause(err)
	}

	return &task, nil
}

// UpdateStatus updates the status of a task
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return errors.NewInternalError("failed to update task status").WithCause(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to get rows affected").WithCause(err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError("task")
	}

	return nil
}

// TransitionStatus atomically moves a task from one status to another.
// It returns false when the task was not in the expected source status,
// which callers use to detect concurrent transitions.
func (r *TaskRepository) TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	query := `UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, errors.NewInternalError("failed to transition task status").WithCause(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternalError("failed to get rows affected").WithCause(err)
	}

	return rowsAffected == 1, nil
}

// SetStarted stamps the start time of a task that is still running. It
// returns false when the task has left the running state, so a cancellation
// landing between the pending→running transition and this stamp cannot be
// overwritten.
func (r *TaskRepository) SetStarted(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE tasks
		SET started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, id, types.TaskStatusRunning)
	if err != nil {
		return false, errors.NewInternalError("failed to stamp task start").WithCause(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternalError("failed to get rows affected").WithCause(err)
	}

	return rowsAffected == 1, nil
}

// SetFinished marks a task as finished with the given terminal status
func (r *TaskRepository) SetFinished(ctx context.Context, id int64, status string) error {
	if !types.TaskIsTerminal(status) {
		return errors.NewValidationError(fmt.Sprintf("status %q is not terminal", status))
	}

	query := `
		UPDATE tasks
		SET status = $1, finished_at = NOW(), updated_at = NOW()
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return errors.NewInternalError("failed to set task as finished").WithCause(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to get rows affected").WithCause(err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError("task")
	}

	return nil
}

// List retrieves a filtered, paginated list of tasks
func (r *TaskRepository) List(ctx context.Context, filter *TaskFilter, pagination *Pagination) ([]*types.Task, int64, error) {
	pagination = DefaultPagination(pagination)

	where, args := buildTaskFilter(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM tasks` + where
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to count tasks").WithCause(err)
	}

	offset := (pagination.Page - 1) * pagination.PageSize
	query := fmt.Sprintf(
		`SELECT * FROM tasks%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, pagination.PageSize, offset)

	var tasks []*types.Task
	err = r.db.SelectContext(ctx, &tasks, query, args...)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to list tasks").WithCause(err)
	}

	return tasks, total, nil
}

// CountByStatus counts tasks in the given status
func (r *TaskRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM tasks WHERE status = $1`

	err := r.db.GetContext(ctx, &count, query, status)
	if err != nil {
		return 0, errors.NewInternalError("failed to count tasks by status").WithCause(err)
	}

	return count, nil
}

func buildTaskFilter(filter *TaskFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if filter.ApplyID != nil {
		args = append(args, *filter.ApplyID)
		conditions = append(conditions, fmt.Sprintf("apply_id = $%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ResultRepository handles result database operations
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Create creates a new result. The unique constraint on task_id enforces at
// most one result per task; a second insert returns a conflict error.
func (r *ResultRepository) Create(ctx context.Context, result *types.Result) error {
	query := `
		INSERT INTO results (
			task_id, qps, avg_latency_ms, p95_latency_ms, p99_latency_ms,
			error_rate, total_requests, successful_requests, failed_requests,
			data_file_path, raw_result_json
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (task_id) DO NOTHING
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		result.TaskID, result.QPS, result.AvgLatencyMS, result.P95LatencyMS,
		result.P99LatencyMS, result.ErrorRate, result.TotalRequests,
		result.SuccessfulRequests, result.FailedRequests,
		result.DataFilePath, result.RawResultJSON,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NewConflictError("result already exists for task")
		}
		return errors.NewInternalError("failed to create result").WithCause(err)
	}

	return nil
}

// GetByTaskID retrieves the result for a task
func (r *ResultRepository) GetByTaskID(ctx context.Context, taskID int64) (*types.Result, error) {
	var result types.Result
	query := `SELECT * FROM results WHERE task_id = $1`

	err := r.db.GetContext(ctx, &result, query, taskID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("result")
		}
		return nil, errors.NewInternalError("failed to get result by task ID").WithCause(err)
	}

	return &result, nil
}

// ReportRepository handles report database operations
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create creates a new report row
func (r *ReportRepository) Create(ctx context.Context, report *types.Report) error {
	query := `
		INSERT INTO reports (task_id, apply_id, report_type, file_path, file_size, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		report.TaskID, report.ApplyID, report.ReportType,
		report.FilePath, report.FileSize, report.Status,
	).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return errors.NewInternalError("failed to create report").WithCause(err)
	}

	return nil
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*types.Report, error) {
	var report types.Report
	query := `SELECT * FROM reports WHERE id = $1`

	err := r.db.GetContext(ctx, &report, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("report")
		}
		return nil, errors.NewInternalError("failed to get report by ID").WithCause(err)
	}

	return &report, nil
}

// GetByTaskAndType retrieves a report by task ID and report type
func (r *ReportRepository) GetByTaskAndType(ctx context.Context, taskID int64, reportType string) (*types.Report, error) {
	var report types.Report
	query := `SELECT * FROM reports WHERE task_id = $1 AND report_type = $2`

	err := r.db.GetContext(ctx, &report, query, taskID, reportType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("report")
		}
		return nil, errors.NewInternalError("failed to get report by task and type").WithCause(err)
	}

	return &report, nil
}

// GetByTaskID retrieves all reports for a task
func (r *ReportRepository) GetByTaskID(ctx context.Context, taskID int64) ([]*types.Report, error) {
	var reports []*types.Report
	query := `SELECT * FROM reports WHERE task_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &reports, query, taskID)
	if err != nil {
		return nil, errors.NewInternalError("failed to get reports by task ID").WithCause(err)
	}

	return reports, nil
}

// Update updates a report row
func (r *ReportRepository) Update(ctx context.Context, report *types.Report) error {
	query := `
		UPDATE reports
		SET file_path = :file_path, file_size = :file_size, status = :status,
		    generated_at = :generated_at, updated_at = NOW()
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, report)
	if err != nil {
		return errors.NewInternalError("failed to update report").WithCause(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to get rows affected").WithCause(err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError("report")
	}

	return nil
}

// Delete deletes a report row
func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM reports WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewInternalError("failed to delete report").WithCause(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternalError("failed to get rows affected").WithCause(err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError("report")
	}

	return nil
}

// List retrieves a filtered, paginated list of reports
func (r *ReportRepository) List(ctx context.Context, filter *ReportFilter, pagination *Pagination) ([]*types.Report, int64, error) {
	pagination = DefaultPagination(pagination)

	where, args := buildReportFilter(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM reports` + where
	err := r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to count reports").WithCause(err)
	}

	offset := (pagination.Page - 1) * pagination.PageSize
	query := fmt.Sprintf(
		`SELECT * FROM reports%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, pagination.PageSize, offset)

	var reports []*types.Report
	err = r.db.SelectContext(ctx, &reports, query, args...)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to list reports").WithCause(err)
	}

	return reports, total, nil
}

func buildReportFilter(filter *ReportFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if filter.TaskID != nil {
		args = append(args, *filter.TaskID)
		conditions = append(conditions, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if filter.ApplyID != nil {
		args = append(args, *filter.ApplyID)
		conditions = append(conditions, fmt.Sprintf("apply_id = $%d", len(args)))
	}
	if filter.ReportType != "" {
		args = append(args, filter.ReportType)
		conditions = append(conditions, fmt.Sprintf("report_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// TaskLogRepository handles task log database operations
type TaskLogRepository struct {
	db *DB
}

// NewTaskLogRepository creates a new task log repository
func NewTaskLogRepository(db *DB) *TaskLogRepository {
	return &TaskLogRepository{db: db}
}

// Append appends a log entry for a task
func (r *TaskLogRepository) Append(ctx context.Context, entry *types.TaskLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO task_logs (task_id, log_level, log_message, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.QueryRowxContext(ctx, query,
		entry.TaskID, entry.LogLevel, entry.Message, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return errors.NewInternalError("failed to append task log").WithCause(err)
	}

	return nil
}

// ListByTaskID retrieves log entries for a task, newest first
func (r *TaskLogRepository) ListByTaskID(ctx context.Context, taskID int64, pagination *Pagination) ([]*types.TaskLogEntry, int64, error) {
	pagination = DefaultPagination(pagination)

	var total int64
	countQuery := `SELECT COUNT(*) FROM task_logs WHERE task_id = $1`
	err := r.db.GetContext(ctx, &total, countQuery, taskID)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to count task logs").WithCause(err)
	}

	offset := (pagination.Page - 1) * pagination.PageSize
	query := `
		SELECT * FROM task_logs
		WHERE task_id = $1
		ORDER BY id DESC LIMIT $2 OFFSET $3`

	var entries []*types.TaskLogEntry
	err = r.db.SelectContext(ctx, &entries, query, taskID, pagination.PageSize, offset)
	if err != nil {
		return nil, 0, errors.NewInternalError("failed to list task logs").WithCause(err)
	}

	return entries, total, nil
}
