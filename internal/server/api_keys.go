package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/textlane/textlane/internal/apikey/domain"
	"github.com/textlane/textlane/internal/orgcontext"
)

func (s *Server) ListAPIKeys(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	keys, err := s.apiKeySvc.List(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"api_keys": keys})
}

type issueAPIKeyRequest struct {
	Name       string `json:"name"`
	Permission string `json:"permission"`
}

// IssueAPIKey mints a new credential. The response carries the plaintext
// exactly once; only the hash is stored.
func (s *Server) IssueAPIKey(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req issueAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	issued, err := s.apiKeySvc.Issue(c.Request.Context(), apikeydomain.IssueRequest{
		OrgID:      orgID,
		UserID:     userID,
		Name:       req.Name,
		Permission: req.Permission,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issued)
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	keyID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.apiKeySvc.Revoke(c.Request.Context(), orgID, keyID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
