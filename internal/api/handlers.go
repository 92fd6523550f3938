package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/phytolab/sage/internal/coordinator"
	"github.com/phytolab/sage/pkg/models"
)

// SubmitTaskRequest is the body of POST /api/v1/tasks.
type SubmitTaskRequest struct {
	Category models.TaskCategory `json:"category" binding:"required"`
	Input    map[string]any      `json:"input"`
	Priority models.TaskPriority `json:"priority"`
}

// SubmitTaskResponse carries the id of the queued task.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
}

func (s *Server) submitTask(c *gin.Context) {
	var req SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	taskID, err := s.engine.SubmitTask(req.Category, req.Input, req.Priority)
	if err != nil {
		if errors.Is(err, coordinator.ErrShuttingDown) {
			respondError(c, http.StatusServiceUnavailable, err)
			return
		}
		respondError(c, http.StatusBadRequest, err)
		return
	}

	respondCreated(c, SubmitTaskResponse{TaskID: taskID},
		fmt.Sprintf("%s task queued", req.Category))
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.engine.GetTaskStatus(c.Param("id"))
	if err != nil {
		if errors.Is(err, coordinator.ErrTaskNotFound) {
			respondError(c, http.StatusNotFound, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondOK(c, task, "")
}

func (s *Server) listTasks(c *gin.Context) {
	respondOK(c, s.engine.ListActiveTasks(), "")
}

func (s *Server) listWorkers(c *gin.Context) {
	respondOK(c, s.engine.WorkerStatuses(), "")
}

func (s *Server) health(c *gin.Context) {
	respondOK(c, gin.H{
		"status":       "ok",
		"active_tasks": s.engine.ActiveCount(),
	}, "")
}
