package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ideaboard/internal/models"
)

type createTaskRequest struct {
	Text string `json:"text" binding:"required"`
}

type updateTaskRequest struct {
	Status string `json:"status" binding:"required"`
}

// handleListTasks returns the board's tasks in creation order.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.ListTasks(c.Request.Context(), currentBoard(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask adds a task to the board's "new" column.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, models.Invalidf("task text is required"))
		return
	}

	ctx := c.Request.Context()
	board := currentBoard(c)
	id, err := s.store.CreateTask(ctx, board.ID, req.Text, currentPrincipal(c).UID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	task, err := s.store.GetTask(ctx, board.ID, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleUpdateTask moves a task to another column.
func (s *Server) handleUpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, models.Invalidf("task status is required"))
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	board := currentBoard(c)
	taskID := c.Param("taskId")
	if err := s.store.UpdateTaskStatus(ctx, board.ID, taskID, status); err != nil {
		s.respondError(c, err)
		return
	}
	task, err := s.store.GetTask(ctx, board.ID, taskID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task. Deleting a missing task succeeds.
func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.store.DeleteTask(c.Request.Context(), currentBoard(c).ID, c.Param("taskId")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
