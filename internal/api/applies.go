package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loadpress/loadpress/internal/apply"
	"github.com/loadpress/loadpress/internal/database"
)

// ApplyHandler handles apply request submission and audit
type ApplyHandler struct {
	applies *apply.Service
}

// NewApplyHandler creates a new apply handler
func NewApplyHandler(applies *apply.Service) *ApplyHandler {
	return &ApplyHandler{applies: applies}
}

// Submit handles POST /api/v1/applies
func (h *ApplyHandler) Submit(c *gin.Context) {
	var req apply.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	created, err := h.applies.Submit(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	CreatedResponse(c, created)
}

// Audit handles POST /api/v1/applies/:id/audit (admin only)
func (h *ApplyHandler) Audit(c *gin.Context) {
	applyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req apply.AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	audited, err := h.applies.Audit(c.Request.Context(), applyID, currentUserID(c), &req)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, audited)
}

// Get handles GET /api/v1/applies/:id
func (h *ApplyHandler) Get(c *gin.Context) {
	applyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	req, err := h.applies.Get(c.Request.Context(), applyID, currentUserID(c), isAdmin(c))
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, req)
}

// List handles GET /api/v1/applies
func (h *ApplyHandler) List(c *gin.Context) {
	filter := &database.ApplyFilter{
		AuditStatus: c.Query("audit_status"),
		Domain:      c.Query("domain"),
	}
	filter.UserID = queryInt64(c, "user_id")
	if raw := c.Query("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Since = t
		}
	}
	if raw := c.Query("until"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Until = t
		}
	}

	pagination := parsePagination(c)
	requests, total, err := h.applies.List(c.Request.Context(), currentUserID(c), isAdmin(c), filter, pagination)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponseWithMeta(c, requests, paginationMeta(pagination, total))
}
