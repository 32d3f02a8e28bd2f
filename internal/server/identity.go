package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	provisioningdomain "github.com/textlane/textlane/internal/provisioning/domain"
)

// HandleIdentityEvent is the auth provider's new-principal push. The
// provisioning service is idempotent, so redelivered events are harmless.
func (s *Server) HandleIdentityEvent(c *gin.Context) {
	var event provisioningdomain.IdentityCreatedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	provisioned, err := s.provisioningSvc.HandleIdentityCreated(c.Request.Context(), event)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, provisioned)
}

// IdentityVerification returns the HMAC the embedded support widget needs
// to assert the signed-in user's identity to the support vendor.
func (s *Server) IdentityVerification(c *gin.Context) {
	authID := c.GetString(contextAuthIDKey)
	if authID == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_id": authID,
		"hash":    identitySignature(s.cfg.IdentitySecret, authID),
	})
}
