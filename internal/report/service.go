// Package report renders completed load-test results into per-kind report
// files and tracks them idempotently: one report row per (task, kind), with
// failed rows eligible for regeneration.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loadpress/loadpress/internal/database"
	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/errors"
	"github.com/loadpress/loadpress/pkg/logging"
	"github.com/loadpress/loadpress/pkg/metrics"
	"github.com/loadpress/loadpress/pkg/types"
)

// Service implements the report pipeline.
type Service struct {
	tasks     database.TaskRepositoryInterface
	results   database.ResultRepositoryInterface
	reports   database.ReportRepositoryInterface
	renderers map[string]Renderer
	mapper    *PathMapper
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewService creates a new report pipeline service
func NewService(
	tasks database.TaskRepositoryInterface,
	results database.ResultRepositoryInterface,
	reports database.ReportRepositoryInterface,
	storageCfg *config.StorageConfig,
	m *metrics.Metrics,
	logger *logging.Logger,
) *Service {
	return &Service{
		tasks:     tasks,
		results:   results,
		reports:   reports,
		renderers: Renderers(),
		mapper:    NewPathMapper(storageCfg),
		metrics:   m,
		logger:    logger,
	}
}

// SupportedKinds returns the closed set of report kinds.
func (s *Service) SupportedKinds() []string {
	kinds := make([]string, 0, len(s.renderers))
	for k := range s.renderers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Generate renders reports for a completed task. Kinds defaults to the full
// supported set. A kind with an existing non-failed report row is skipped;
// a failed row is regenerated in place. One kind's rendering failure is
// recorded as a failed row and does not block other kinds. Returns every
// report row for the task, pre-existing and new.
func (s *Service) Generate(ctx context.Context, taskID int64, kinds []string) ([]*types.Report, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != types.TaskStatusCompleted {
		return nil, errors.NewInvalidStateError("reports require a completed task").
			WithDetail("status", task.Status)
	}

	result, err := s.results.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if result.DataFilePath == nil || *result.DataFilePath == "" {
		return nil, errors.NewMissingArtifactError("result has no tabular artifact")
	}

	table, err := LoadTable(*result.DataFilePath)
	if err != nil {
		return nil, err
	}

	if len(kinds) == 0 {
		kinds = s.SupportedKinds()
	}
	for _, kind := range kinds {
		if _, ok := s.renderers[kind]; !ok {
			return nil, errors.NewValidationError("unsupported report kind").
				WithDetail("kind", kind)
		}
	}

	existing, err := s.reports.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	byKind := make(map[string]*types.Report, len(existing))
	for _, rep := range existing {
		byKind[rep.ReportType] = rep
	}

	doc := &Document{Task: task, Result: result, Table: table}

	for _, kind := range kinds {
		prior := byKind[kind]
		if prior != nil && prior.Status != types.ReportStatusFailed {
			continue
		}
		s.generateKind(ctx, doc, kind, prior)
	}

	return s.reports.GetByTaskID(ctx, taskID)
}

// generateKind renders one kind and records the outcome. A prior failed row
// is updated in place; otherwise a new row is created.
func (s *Service) generateKind(ctx context.Context, doc *Document, kind string, prior *types.Report) {
	renderer := s.renderers[kind]

	rep := prior
	if rep == nil {
		rep = &types.Report{
			TaskID:     doc.Task.ID,
			ApplyID:    doc.Task.ApplyID,
			ReportType: kind,
			Status:     types.ReportStatusGenerating,
		}
		if err := s.reports.Create(ctx, rep); err != nil {
			s.logger.LogError(ctx, err, "failed to create report row", map[string]interface{}{
				"task_id": doc.Task.ID,
				"kind":    kind,
			})
			return
		}
	}

	logicalPath, size, renderErr := s.render(renderer, doc)
	now := time.Now()
	if renderErr != nil {
		rep.Status = types.ReportStatusFailed
		rep.FilePath = ""
		rep.FileSize = nil
		rep.GeneratedAt = nil
		s.metrics.RecordReport(kind, "failed")
		s.logger.LogError(ctx, renderErr, "report rendering failed", map[string]interface{}{
			"task_id": doc.Task.ID,
			"kind":    kind,
		})
	} else {
		rep.Status = types.ReportStatusCompleted
		rep.FilePath = logicalPath
		rep.FileSize = &size
		rep.GeneratedAt = &now
		s.metrics.RecordReport(kind, "completed")
		s.logger.LogReportEvent(ctx, "report_generated", doc.Task.ID, kind, map[string]interface{}{
			"path": logicalPath,
			"size": size,
		})
	}

	if err := s.reports.Update(ctx, rep); err != nil {
		s.logger.LogError(ctx, err, "failed to record report outcome", map[string]interface{}{
			"task_id": doc.Task.ID,
			"kind":    kind,
		})
	}
}

// render writes the report file and returns its logical path and size.
func (s *Service) render(renderer Renderer, doc *Document) (string, int64, error) {
	dir := filepath.Join(s.mapper.UploadDir(), "reports", renderer.Kind())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, errors.NewInternalError("failed to create report directory").WithCause(err)
	}

	outPath := filepath.Join(dir, fmt.Sprintf("task_%d_report.%s", doc.Task.ID, renderer.Extension()))
	if err := renderer.Render(doc, outPath); err != nil {
		return "", 0, err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", 0, errors.NewInternalError("failed to stat report file").WithCause(err)
	}

	logical, err := s.mapper.ToLogical(outPath)
	if err != nil {
		return "", 0, err
	}
	return logical, info.Size(), nil
}

// Get retrieves a report by ID
func (s *Service) Get(ctx context.Context, reportID int64) (*types.Report, error) {
	return s.reports.GetByID(ctx, reportID)
}

// ListByTask retrieves all reports for a task
func (s *Service) ListByTask(ctx context.Context, taskID int64) ([]*types.Report, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.reports.GetByTaskID(ctx, taskID)
}

// List retrieves a filtered, paginated report list
func (s *Service) List(ctx context.Context, filter *database.ReportFilter, pagination *database.Pagination) ([]*types.Report, int64, error) {
	return s.reports.List(ctx, filter, pagination)
}

// Delete removes a report row and best-effort removes its backing file.
// File removal errors are swallowed; the row always goes.
func (s *Service) Delete(ctx context.Context, reportID int64) error {
	rep, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}

	if rep.FilePath != "" {
		if physical, perr := s.mapper.ToPhysical(rep.FilePath); perr == nil {
			if rmErr := os.Remove(physical); rmErr != nil && !os.IsNotExist(rmErr) {
				s.logger.WithContext(ctx).WithError(rmErr).Warn("Failed to remove report file")
			}
		}
	}

	return s.reports.Delete(ctx, reportID)
}
