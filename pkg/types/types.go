package types

import (
	"encoding/json"
	"time"
)

// User represents a platform account
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ApplyRequest represents a user's request to have a domain load-tested,
// subject to administrative audit.
type ApplyRequest struct {
	ID              int64      `json:"id" db:"id"`
	UserID          int64      `json:"user_id" db:"user_id"`
	ApplicationName string     `json:"application_name" db:"application_name"`
	Domain          string     `json:"domain" db:"domain"`
	URL             string     `json:"url" db:"url"`
	Method          string     `json:"method" db:"method"`
	RecordInfo      string     `json:"record_info" db:"record_info"`
	Description     *string    `json:"description,omitempty" db:"description"`
	Concurrency     int        `json:"concurrency" db:"concurrency"`
	Duration        string     `json:"duration" db:"duration"`
	ExpectedQPS     *int       `json:"expected_qps,omitempty" db:"expected_qps"`
	RequestBody     *string    `json:"request_body,omitempty" db:"request_body"`
	AuditStatus     string     `json:"audit_status" db:"audit_status"`
	AuditUserID     *int64     `json:"audit_user_id,omitempty" db:"audit_user_id"`
	AuditComment    *string    `json:"audit_comment,omitempty" db:"audit_comment"`
	AuditTime       *time.Time `json:"audit_time,omitempty" db:"audit_time"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Task represents one execution attempt of a load test derived from an
// approved ApplyRequest.
type Task struct {
	ID          int64      `json:"id" db:"id"`
	ApplyID     int64      `json:"apply_id" db:"apply_id"`
	TargetURL   string     `json:"target_url" db:"target_url"`
	Concurrency int        `json:"concurrency" db:"concurrency"`
	Duration    string     `json:"duration" db:"duration"`
	Threads     int        `json:"threads" db:"threads"`
	ScriptPath  *string    `json:"script_path,omitempty" db:"script_path"`
	Status      string     `json:"status" db:"status"`
	CreatedBy   int64      `json:"created_by" db:"created_by"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Result represents the structured outcome of one completed Task. Exactly one
// Result exists per completed task; metric fields are nullable because the
// runner artifact may omit any of them.
type Result struct {
	ID                 int64           `json:"id" db:"id"`
	TaskID             int64           `json:"task_id" db:"task_id"`
	QPS                *float64        `json:"qps,omitempty" db:"qps"`
	AvgLatencyMS       *float64        `json:"avg_latency_ms,omitempty" db:"avg_latency_ms"`
	P95LatencyMS       *float64        `json:"p95_latency_ms,omitempty" db:"p95_latency_ms"`
	P99LatencyMS       *float64        `json:"p99_latency_ms,omitempty" db:"p99_latency_ms"`
	ErrorRate          *float64        `json:"error_rate,omitempty" db:"error_rate"`
	TotalRequests      *int64          `json:"total_requests,omitempty" db:"total_requests"`
	SuccessfulRequests *int64          `json:"successful_requests,omitempty" db:"successful_requests"`
	FailedRequests     *int64          `json:"failed_requests,omitempty" db:"failed_requests"`
	DataFilePath       *string         `json:"data_file_path,omitempty" db:"data_file_path"`
	RawResultJSON      json.RawMessage `json:"raw_result_json,omitempty" db:"raw_result_json"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// Report represents one rendered presentation of a Task's Result.
type Report struct {
	ID          int64      `json:"id" db:"id"`
	TaskID      int64      `json:"task_id" db:"task_id"`
	ApplyID     int64      `json:"apply_id" db:"apply_id"`
	ReportType  string     `json:"report_type" db:"report_type"`
	FilePath    string     `json:"file_path" db:"file_path"`
	FileSize    *int64     `json:"file_size,omitempty" db:"file_size"`
	Status      string     `json:"status" db:"status"`
	GeneratedAt *time.Time `json:"generated_at,omitempty" db:"generated_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TaskLogEntry is one append-only execution trace line for a task.
type TaskLogEntry struct {
	ID        int64     `json:"id" db:"id"`
	TaskID    int64     `json:"task_id" db:"task_id"`
	LogLevel  string    `json:"log_level" db:"log_level"`
	Message   string    `json:"log_message" db:"log_message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Audit statuses for apply requests
const (
	AuditStatusPending  = "pending"
	AuditStatusApproved = "approved"
	AuditStatusRejected = "rejected"
)

// Task statuses
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

// TaskIsTerminal reports whether a task status permits no further transitions.
func TaskIsTerminal(status string) bool {
	switch status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Report types
const (
	ReportTypeImage    = "image"
	ReportTypePDF      = "pdf"
	ReportTypeExcel    = "excel"
	ReportTypeMarkdown = "markdown"
)

// Report statuses
const (
	ReportStatusGenerating = "generating"
	ReportStatusCompleted  = "completed"
	ReportStatusFailed     = "failed"
)

// Task log levels
const (
	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
