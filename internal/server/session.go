package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ideaboard/internal/models"
)

// handleSession records a sign-in: the stored user record is created or
// refreshed from the token's identity. A failed sync is logged by the
// resolver and reported, but the sign-in still succeeds.
func (s *Server) handleSession(c *gin.Context) {
	principal := currentPrincipal(c)
	synced := s.resolver.Resolve(c.Request.Context(), principal)

	user, err := s.store.GetUser(c.Request.Context(), principal.UID)
	if err != nil {
		user = userFromPrincipal(principal)
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user, "synced": synced})
}

func userFromPrincipal(p models.Principal) models.User {
	user := models.User{UID: p.UID, Email: p.Email, DisplayName: p.DisplayName, Boards: []string{}}
	if p.PhotoURL != "" {
		photo := p.PhotoURL
		user.PhotoURL = &photo
	}
	return user
}
