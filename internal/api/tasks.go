package api

import (
	"github.com/gin-gonic/gin"

	"github.com/loadpress/loadpress/internal/database"
	"github.com/loadpress/loadpress/internal/orchestrator"
	"github.com/loadpress/loadpress/pkg/types"
)

// TaskHandler handles load-test task lifecycle requests
type TaskHandler struct {
	orch *orchestrator.Service
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(orch *orchestrator.Service) *TaskHandler {
	return &TaskHandler{orch: orch}
}

// CreateTaskRequest carries the fields of a manually created task.
type CreateTaskRequest struct {
	ApplyID          int64   `json:"apply_id"`
	TargetURL        string  `json:"target_url"`
	Concurrency      int     `json:"concurrency"`
	Duration         string  `json:"duration"`
	Threads          int     `json:"threads"`
	ScriptPath       *string `json:"script_path,omitempty"`
	StartImmediately bool    `json:"start_immediately,omitempty"`
}

// Create handles POST /api/v1/tasks (admin only)
func (h *TaskHandler) Create(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	task := &types.Task{
		ApplyID:     req.ApplyID,
		TargetURL:   req.TargetURL,
		Concurrency: req.Concurrency,
		Duration:    req.Duration,
		Threads:     req.Threads,
		ScriptPath:  req.ScriptPath,
		CreatedBy:   currentUserID(c),
	}

	created, err := h.orch.CreateTask(c.Request.Context(), task)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	if req.StartImmediately {
		started, err := h.orch.StartTask(c.Request.Context(), created.ID)
		if err != nil {
			ErrorResponseFromError(c, err)
			return
		}
		created = started
	}

	CreatedResponse(c, created)
}

// Get handles GET /api/v1/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	task, ok := h.loadOwnedTask(c)
	if !ok {
		return
	}

	SuccessResponse(c, task)
}

// List handles GET /api/v1/tasks
func (h *TaskHandler) List(c *gin.Context) {
	filter := &database.TaskFilter{
		Status: c.Query("status"),
	}
	filter.ApplyID = queryInt64(c, "apply_id")
	filter.CreatedBy = queryInt64(c, "created_by")

	// Non-admin users only see their own tasks
	if !isAdmin(c) {
		userID := currentUserID(c)
		filter.CreatedBy = &userID
	}

	pagination := parsePagination(c)
	tasks, total, err := h.orch.ListTasks(c.Request.Context(), filter, pagination)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponseWithMeta(c, tasks, paginationMeta(pagination, total))
}

// Start handles POST /api/v1/tasks/:id/start
func (h *TaskHandler) Start(c *gin.Context) {
	task, ok := h.loadOwnedTask(c)
	if !ok {
		return
	}

	started, err := h.orch.StartTask(c.Request.Context(), task.ID)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, started)
}

// Cancel handles POST /api/v1/tasks/:id/cancel
func (h *TaskHandler) Cancel(c *gin.Context) {
	task, ok := h.loadOwnedTask(c)
	if !ok {
		return
	}

	if err := h.orch.CancelTask(c.Request.Context(), task.ID); err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, gin.H{"id": task.ID, "status": types.TaskStatusCancelled})
}

// Retry handles POST /api/v1/tasks/:id/retry
func (h *TaskHandler) Retry(c *gin.Context) {
	task, ok := h.loadOwnedTask(c)
	if !ok {
		return
	}

	retried, err := h.orch.RetryTask(c.Request.Context(), task.ID, currentUserID(c))
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	CreatedResponse(c, retried)
}

// GetLogs handles GET /api/v1/tasks/:id/logs
func (h *TaskHandler) GetLogs(c *gin.Context) {
	task, ok := h.loadOwnedTask(c)
	if !ok {
		return
	}

	pagination := parsePagination(c)
	logs, total, err := h.orch.GetTaskLogs(c.Request.Context(), task.ID, pagination)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponseWithMeta(c, logs, paginationMeta(pagination, total))
}

// GetResult handles GET /api/v1/tasks/:id/result
func (h *TaskHandler) GetResult(c *gin.Context) {
	task, ok := h.loadOwnedTask(c)
	if !ok {
		return
	}

	result, err := h.orch.GetResult(c.Request.Context(), task.ID)
	if err != nil {
		ErrorResponseFromError(c, err)
		return
	}

	SuccessResponse(c, result)
}

// loadOwnedTask fetches the task from the :id parameter and enforces that the
// requester owns it or is an administrator.
func (h *TaskHandler) loadOwnedTask(c *gin.Context) (*types.Task, bool) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	task, err := h.orch.GetTask(c.Request.Context(), taskID)
	if err != nil {
		ErrorResponseFromError(c, err)
		return nil, false
	}

	if !isAdmin(c) && task.CreatedBy != currentUserID(c) {
		ForbiddenResponse(c, "access to this task is denied")
		return nil, false
	}

	return task, true
}
