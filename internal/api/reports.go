package api

import (
	"github.com/gin-gonic/gin"

	"github.com/loadpress/loadpress/internal/database"
	"github.com/loadpress/loadpress/internal/report"
)

// ReportHandler handles report generation and retrieval requests
type ReportHandler struct {
	reports *report.Service
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *report.Service) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GenerateRequest selects the report kinds to produce. An empty list means
// all supported kinds.
type GenerateRequest struct {
	Kinds []string `json:"kinds,omitempty"`
}

// Generate handles POST /api/v1/tasks/:id/reports
func (h *ReportHandler) Generate(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequestResponse(c, "Invalid request body: "+err.Error())
			return
		}
	}

	reports, err := h.reports.Generate(c.Request.Context(), taskID, req.Kinds)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, reports)
}

// ListByTask handles GET /api/v1/tasks/:id/reports
func (h *ReportHandler) ListByTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	reports, err := h.reports.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, reports)
}

// ListByApply handles GET /api/v1/applies/:id/reports
func (h *ReportHandler) ListByApply(c *gin.Context) {
	applyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	filter := &database.ReportFilter{ApplyID: &applyID}
	pagination := parsePagination(c)
	reports, total, err := h.reports.List(c.Request.Context(), filter, pagination)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponseWithMeta(c, reports, paginationMeta(pagination, total))
}

// Get handles GET /api/v1/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	reportID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	rep, err := h.reports.Get(c.Request.Context(), reportID)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, rep)
}

// List handles GET /api/v1/reports (admin only)
func (h *ReportHandler) List(c *gin.Context) {
	filter := &database.ReportFilter{
		ReportType: c.Query("report_type"),
		Status:     c.Query("status"),
	}
	filter.TaskID = queryInt64(c, "task_id")
	filter.ApplyID = queryInt64(c, "apply_id")

	pagination := parsePagination(c)
	reports, total, err := h.reports.List(c.Request.Context(), filter, pagination)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponseWithMeta(c, reports, paginationMeta(pagination, total))
}

// Delete handles DELETE /api/v1/reports/:id (admin only)
func (h *ReportHandler) Delete(c *gin.Context) {
	reportID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.reports.Delete(c.Request.Context(), reportID); err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, gin.H{"id": reportID, "deleted": true})
}
