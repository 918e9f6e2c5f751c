package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ideaboard/internal/auth"
	"ideaboard/internal/models"
)

const (
	contextPrincipalKey = "principal"
	contextBoardKey     = "board"
)

// requireAuth verifies the bearer token and stores the principal on the
// context. Browsers cannot set headers on websocket upgrades, so a token
// query parameter is accepted when no Authorization header is present.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw string
		if header := c.GetHeader("Authorization"); header != "" {
			token, err := auth.BearerToken(header)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			raw = token
		} else {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
			return
		}

		principal, err := s.tokens.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

// requireMember loads the board named by the :id parameter and rejects
// callers who are not among its members.
func (s *Server) requireMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := currentPrincipal(c)
		board, err := s.store.GetBoard(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		if !board.HasMember(principal.UID) {
			s.respondError(c, models.PermissionDeniedf("You are not a member of this board"))
			return
		}
		c.Set(contextBoardKey, board)
		c.Next()
	}
}

// currentPrincipal returns the principal stored by requireAuth.
func currentPrincipal(c *gin.Context) models.Principal {
	p, _ := c.Get(contextPrincipalKey)
	principal, _ := p.(models.Principal)
	return principal
}

// currentBoard returns the board stored by requireMember.
func currentBoard(c *gin.Context) models.Board {
	b, _ := c.Get(contextBoardKey)
	board, _ := b.(models.Board)
	return board
}
