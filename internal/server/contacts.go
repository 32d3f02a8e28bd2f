package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	contactdomain "github.com/textlane/textlane/internal/contact/domain"
	"github.com/textlane/textlane/internal/orgcontext"
)

type upsertContactRequest struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Subscribed  *bool  `json:"subscribed"`
	Notes       string `json:"notes"`
}

func (s *Server) UpsertContact(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req upsertContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// Omitted means subscribed; an explicit false is an opt-out.
	subscribed := true
	if req.Subscribed != nil {
		subscribed = *req.Subscribed
	}

	contactID, err := s.contactSvc.Upsert(c.Request.Context(), orgID, contactdomain.UpsertRequest{
		PhoneNumber: req.PhoneNumber,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Subscribed:  subscribed,
		Notes:       req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contact_id": contactID.String()})
}

func (s *Server) SearchContacts(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	subscribedOnly := strings.EqualFold(c.Query("subscribed_only"), "true")

	contacts, err := s.contactSvc.Search(c.Request.Context(), orgID, contactdomain.SearchRequest{
		Query:          c.Query("q"),
		SubscribedOnly: subscribedOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}
