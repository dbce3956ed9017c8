package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/loadpress/loadpress/pkg/types"
)

// UserRepositoryInterface defines the interface for user operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *types.User) error
	GetByID(ctx context.Context, id int64) (*types.User, error)
	GetByUsername(ctx context.Context, username string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	Update(ctx context.Context, user *types.User) error
	List(ctx context.Context, pagination *Pagination) ([]*types.User, int64, error)
}

// ApplyRepositoryInterface defines the interface for apply request operations
type ApplyRepositoryInterface interface {
	Create(ctx context.Context, apply *types.ApplyRequest) error
	GetByID(ctx context.Context, id int64) (*types.ApplyRequest, error)
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*types.ApplyRequest, error)
	HasPendingForDomain(ctx context.Context, userID int64, domain string) (bool, error)
	UpdateAudit(ctx context.Context, tx *sqlx.Tx, apply *types.ApplyRequest) error
	List(ctx context.Context, filter *ApplyFilter, pagination *Pagination) ([]*types.ApplyRequest, int64, error)
}

// TaskRepositoryInterface defines the interface for task operations
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *types.Task) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, task *types.Task) error
	GetByID(ctx context.Context, id int64) (*types.Task, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	TransitionStatus(ctx context.Context, id int64, from, to string) (bool, error)
	SetStarted(ctx context.Context, id int64) (bool, error)
	SetFinished(ctx context.Context, id int64, status string) error
	List(ctx context.Context, filter *TaskFilter, pagination *Pagination) ([]*types.Task, int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// ResultRepositoryInterface defines the interface for result operations
type ResultRepositoryInterface interface {
	Create(ctx context.Context, result *types.Result) error
	GetByTaskID(ctx context.Context, taskID int64) (*types.Result, error)
}

// ReportRepositoryInterface defines the interface for report operations
type ReportRepositoryInterface interface {
	Create(ctx context.Context, report *types.Report) error
	GetByID(ctx context.Context, id int64) (*types.Report, error)
	GetByTaskAndType(ctx context.Context, taskID int64, reportType string) (*types.Report, error)
	GetByTaskID(ctx context.Context, taskID int64) ([]*types.Report, error)
	Update(ctx context.Context, report *types.Report) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter *ReportFilter, pagination *Pagination) ([]*types.Report, int64, error)
}

// TaskLogRepositoryInterface defines the interface for task log operations
type TaskLogRepositoryInterface interface {
	Append(ctx context.Context, entry *types.TaskLogEntry) error
	ListByTaskID(ctx context.Context, taskID int64, pagination *Pagination) ([]*types.TaskLogEntry, int64, error)
}

// ApplyFilter represents filters for apply request queries
type ApplyFilter struct {
	UserID      *int64    `json:"user_id,omitempty"`
	AuditStatus string    `json:"audit_status,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Since       time.Time `json:"since,omitempty"`
	Until       time.Time `json:"until,omitempty"`
}

// TaskFilter represents filters for task queries
type TaskFilter struct {
	ApplyID   *int64 `json:"apply_id,omitempty"`
	CreatedBy *int64 `json:"created_by,omitempty"`
	Status    string `json:"status,omitempty"`
}

// ReportFilter represents filters for report queries
type ReportFilter struct {
	TaskID     *int64 `json:"task_id,omitempty"`
	ApplyID    *int64 `json:"apply_id,omitempty"`
	ReportType string `json:"report_type,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Pagination represents pagination parameters
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// DefaultPagination returns pagination with sane defaults applied.
func DefaultPagination(p *Pagination) *Pagination {
	if p == nil {
		p = &Pagination{}
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
	return p
}
