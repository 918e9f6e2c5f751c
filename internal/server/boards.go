package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ideaboard/internal/models"
)

type boardRequest struct {
	Name string `json:"name" binding:"required"`
}

// handleListBoards returns every board the caller is a member of.
func (s *Server) handleListBoards(c *gin.Context) {
	boards, err := s.store.GetUserBoards(c.Request.Context(), currentPrincipal(c).UID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"boards": boards})
}

// handleCreateBoard creates a board owned by the caller.
func (s *Server) handleCreateBoard(c *gin.Context) {
	var req boardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, models.Invalidf("board name is required"))
		return
	}

	id, err := s.store.CreateBoard(c.Request.Context(), currentPrincipal(c).UID, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	board, err := s.store.GetBoard(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"board": board})
}

// handleGetBoard returns the board loaded by the membership check.
func (s *Server) handleGetBoard(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"board": currentBoard(c)})
}

// handleDeleteBoard removes a board and all of its tasks. Only the owner may
// delete it.
func (s *Server) handleDeleteBoard(c *gin.Context) {
	board := currentBoard(c)
	if err := s.store.DeleteBoard(c.Request.Context(), board.ID, currentPrincipal(c).UID); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
