package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ideaboard/internal/models"
)

// handleSuggestUsers matches the q parameter against the user directory.
// With a board parameter the board's members are left out; without one only
// the caller is.
func (s *Server) handleSuggestUsers(c *gin.Context) {
	principal := currentPrincipal(c)
	users, err := s.sharing.Suggest(c.Request.Context(), &principal, c.Query("board"), c.Query("q"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": users})
}
