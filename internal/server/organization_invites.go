package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invitedomain "github.com/textlane/textlane/internal/invite/domain"
	"github.com/textlane/textlane/internal/orgcontext"
)

func (s *Server) ListInvites(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	invites, err := s.inviteSvc.List(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

type createInviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) CreateInvite(c *gin.Context) {
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

	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	invite, err := s.inviteSvc.Create(c.Request.Context(), invitedomain.CreateRequest{
		OrgID:     orgID,
		Email:     req.Email,
		Role:      req.Role,
		InvitedBy: userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, invite)
}

func (s *Server) RevokeInvite(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	inviteID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.inviteSvc.Revoke(c.Request.Context(), orgID, inviteID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

func (s *Server) AcceptInvite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req acceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.inviteSvc.Accept(c.Request.Context(), req.Token, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
