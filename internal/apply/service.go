// Package apply implements the load-test request intake and audit workflow.
// A user submits an apply request for a domain; an administrator audits it;
// approval atomically spawns a pending task carrying the request's
// parameters.
package apply

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/loadpress/loadpress/internal/database"
	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/errors"
	"github.com/loadpress/loadpress/pkg/logging"
	"github.com/loadpress/loadpress/pkg/metrics"
	"github.com/loadpress/loadpress/pkg/types"
)

// domainPattern accepts registrable DNS names: dot-separated labels of
// letters, digits and hyphens, ending in an alphabetic TLD.
var domainPattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// SubmitRequest carries the fields of a new apply submission.
type SubmitRequest struct {
	ApplicationName string  `json:"application_name"`
	Domain          string  `json:"domain"`
	URL             string  `json:"url"`
	Method          string  `json:"method"`
	RecordInfo      string  `json:"record_info"`
	Description     *string `json:"description,omitempty"`
	Concurrency     int     `json:"concurrency"`
	Duration        string  `json:"duration"`
	ExpectedQPS     *int    `json:"expected_qps,omitempty"`
	RequestBody     *string `json:"request_body,omitempty"`
}

// AuditRequest carries an audit decision.
type AuditRequest struct {
	Approved bool    `json:"approved"`
	Comment  *string `json:"comment,omitempty"`
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// Service implements the apply workflow.
type Service struct {
	db      TxRunner
	applies database.ApplyRepositoryInterface
	tasks   database.TaskRepositoryInterface
	cfg     *config.RunnerConfig
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewService creates a new apply workflow service
func NewService(
	db TxRunner,
	applies database.ApplyRepositoryInterface,
	tasks database.TaskRepositoryInterface,
	cfg *config.RunnerConfig,
	m *metrics.Metrics,
	logger *logging.Logger,
) *Service {
	return &Service{
		db:      db,
		applies: applies,
		tasks:   tasks,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Submit validates and persists a new apply request in pending state.
// A user may hold at most one pending request per domain.
func (s *Service) Submit(ctx context.Context, userID int64, req *SubmitRequest) (*types.ApplyRequest, error) {
	if err := s.validateSubmit(req); err != nil {
		s.metrics.RecordApply("submit", "rejected")
		return nil, err
	}

	pending, err := s.applies.HasPendingForDomain(ctx, userID, req.Domain)
	if err != nil {
		return nil, err
	}
	if pending {
		s.metrics.RecordApply("submit", "conflict")
		return nil, errors.NewConflictError("a pending apply request already exists for this domain").
			WithDetail("domain", req.Domain)
	}

	apply := &types.ApplyRequest{
		UserID:          userID,
		ApplicationName: strings.TrimSpace(req.ApplicationName),
		Domain:          req.Domain,
		URL:             req.URL,
		Method:          req.Method,
		RecordInfo:      req.RecordInfo,
		Description:     req.Description,
		Concurrency:     req.Concurrency,
		Duration:        req.Duration,
		ExpectedQPS:     req.ExpectedQPS,
		RequestBody:     req.RequestBody,
		AuditStatus:     types.AuditStatusPending,
	}

	if err := s.applies.Create(ctx, apply); err != nil {
		return nil, err
	}

	s.metrics.RecordApply("submit", "accepted")
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"apply_id": apply.ID,
		"domain":   apply.Domain,
	}).Info("Apply request submitted")

	return apply, nil
}

// Audit records an approval or rejection decision. Approval also spawns a
// pending task carrying the request's parameters; both writes commit as one
// transaction. The request row is locked for the duration, so concurrent
// audits of the same request serialize and the loser sees a non-pending
// state.
func (s *Service) Audit(ctx context.Context, applyID, auditorID int64, req *AuditRequest) (*types.ApplyRequest, error) {
	var audited *types.ApplyRequest

	err := s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		apply, err := s.applies.GetByIDForUpdate(ctx, tx, applyID)
		if err != nil {
			return err
		}

		if apply.AuditStatus != types.AuditStatusPending {
			return errors.NewInvalidStateError("apply request has already been audited").
				WithDetail("audit_status", apply.AuditStatus)
		}

		now := time.Now()
		if req.Approved {
			apply.AuditStatus = types.AuditStatusApproved
		} else {
			apply.AuditStatus = types.AuditStatusRejected
		}
		apply.AuditUserID = &auditorID
		apply.AuditComment = req.Comment
		apply.AuditTime = &now

		if err := s.applies.UpdateAudit(ctx, tx, apply); err != nil {
			return err
		}

		if req.Approved {
			task := &types.Task{
				ApplyID:     apply.ID,
				TargetURL:   "https://" + apply.Domain,
				Concurrency: apply.Concurrency,
				Duration:    apply.Duration,
				Threads:     s.cfg.DefaultThreads,
				Status:      types.TaskStatusPending,
				CreatedBy:   auditorID,
			}
			if err := s.tasks.CreateTx(ctx, tx, task); err != nil {
				return err
			}
		}

		audited = apply
		return nil
	})
	if err != nil {
		s.metrics.RecordApply("audit", "error")
		return nil, err
	}

	outcome := "rejected"
	if req.Approved {
		outcome = "approved"
	}
	s.metrics.RecordApply("audit", outcome)
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"apply_id":   audited.ID,
		"auditor_id": auditorID,
		"decision":   outcome,
	}).Info("Apply request audited")

	return audited, nil
}

// Get retrieves an apply request, scoped to its owner unless admin.
func (s *Service) Get(ctx context.Context, applyID, userID int64, isAdmin bool) (*types.ApplyRequest, error) {
	apply, err := s.applies.GetByID(ctx, applyID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && apply.UserID != userID {
		return nil, errors.NewAuthorizationError("apply request belongs to another user")
	}
	return apply, nil
}

// List retrieves apply requests newest-first. Non-admin callers only see
// their own submissions regardless of the requested filter.
func (s *Service) List(ctx context.Context, userID int64, isAdmin bool, filter *database.ApplyFilter, pagination *database.Pagination) ([]*types.ApplyRequest, int64, error) {
	if filter == nil {
		filter = &database.ApplyFilter{}
	}
	if !isAdmin {
		filter.UserID = &userID
	}
	return s.applies.List(ctx, filter, pagination)
}

func (s *Service) validateSubmit(req *SubmitRequest) error {
	if req == nil {
		return errors.NewValidationError("request body is required")
	}
	if strings.TrimSpace(req.ApplicationName) == "" {
		return errors.NewValidationError("application name is required")
	}
	if !domainPattern.MatchString(req.Domain) {
		return errors.NewValidationError("domain is not a valid DNS name").
			WithDetail("domain", req.Domain)
	}
	if req.URL == "" {
		return errors.NewValidationError("target URL is required")
	}
	if req.Method == "" {
		req.Method = "GET"
	}
	if strings.TrimSpace(req.RecordInfo) == "" {
		return errors.NewValidationError("record info is required")
	}
	if req.Concurrency < 1 {
		return errors.NewValidationError("concurrency must be at least 1")
	}
	if req.Duration == "" {
		return errors.NewValidationError("duration is required")
	}
	return nil
}
