package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	organizationdomain "github.com/textlane/textlane/internal/organization/domain"
	"github.com/textlane/textlane/internal/orgcontext"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), userID, organizationdomain.CreateRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (s *Server) ListOrganizations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgs, err := s.organizationSvc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

func (s *Server) GetOrganization(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.organizationSvc.GetByID(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (s *Server) ListMembers(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	members, err := s.organizationSvc.Members(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

type transferOwnershipRequest struct {
	ToUserID string `json:"to_user_id"`
}

func (s *Server) TransferOwnership(c *gin.Context) {
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

	var req transferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	toUserID, err := snowflake.ParseString(req.ToUserID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.organizationSvc.TransferOwnership(c.Request.Context(), orgID, userID, toUserID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) LeaveOrganization(c *gin.Context) {
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

	if err := s.organizationSvc.Leave(c.Request.Context(), orgID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type updateSubscriptionTierRequest struct {
	SubscriptionTier string `json:"subscription_tier"`
}

func (s *Server) UpdateSubscriptionTier(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req updateSubscriptionTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.organizationSvc.SetSubscriptionTier(c.Request.Context(), orgID, req.SubscriptionTier); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) DeleteOrganization(c *gin.Context) {
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

	if err := s.organizationSvc.Delete(c.Request.Context(), orgID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
