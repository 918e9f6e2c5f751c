package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ideaboard/internal/models"
)

type shareRequest struct {
	Email string `json:"email"`
}

// handleListMembers resolves the board's members to user records.
func (s *Server) handleListMembers(c *gin.Context) {
	principal := currentPrincipal(c)
	members, err := s.sharing.Members(c.Request.Context(), &principal, currentBoard(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": members})
}

// handleShareBoard adds a registered user, found by email, to the board.
func (s *Server) handleShareBoard(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, models.Invalidf("Please enter an email"))
		return
	}

	principal := currentPrincipal(c)
	user, err := s.sharing.Share(c.Request.Context(), &principal, currentBoard(c).ID, req.Email)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

// handleRemoveMember takes a member off the board and returns who is left.
func (s *Server) handleRemoveMember(c *gin.Context) {
	principal := currentPrincipal(c)
	members, err := s.sharing.RemoveMember(c.Request.Context(), &principal, currentBoard(c).ID, c.Param("uid"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": members})
}
