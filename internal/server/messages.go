package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	messagedomain "github.com/textlane/textlane/internal/message/domain"
	"github.com/textlane/textlane/internal/orgcontext"
)

type sendMessageRequest struct {
	Recipient   string `json:"recipient"`
	Body        string `json:"body"`
	Service     string `json:"service"`
	SMSFallback bool   `json:"sms_fallback"`
}

func (s *Server) SendMessage(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record := messagedomain.RecordRequest{
		Recipient:   req.Recipient,
		Body:        req.Body,
		Service:     req.Service,
		SMSFallback: req.SMSFallback,
	}
	if identity, ok := currentAPIKeyIdentity(c); ok && identity.UserID != 0 {
		sender := identity.UserID
		record.SenderUserID = &sender
	}

	msg, err := s.messageSvc.Record(c.Request.Context(), orgID, record)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (s *Server) ListMessages(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	messages, err := s.messageSvc.List(c.Request.Context(), orgID, messagedomain.ListRequest{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) GetMessage(c *gin.Context) {
	orgID, ok := orgcontext.OrgIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	messageID := strings.TrimSpace(c.Param("id"))
	if messageID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	msg, err := s.messageSvc.Get(c.Request.Context(), orgID, messageID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

type messageStatusEvent struct {
	MessageID     string `json:"message_id"`
	Status        string `json:"status"`
	DateDelivered string `json:"date_delivered"`
	DateRead      string `json:"date_read"`
}

// status derives the target state. Gateways either name the status directly
// or send a receipt with delivery/read timestamps.
func (e messageStatusEvent) status() string {
	if e.Status != "" {
		return e.Status
	}
	if e.DateRead != "" {
		return messagedomain.StatusRead
	}
	if e.DateDelivered != "" {
		return messagedomain.StatusDelivered
	}
	return ""
}

// UpdateMessageStatus is the delivery-receipt webhook pushed by the message
// gateway. Transitions that move backward or skip are refused with a
// conflict so the gateway can drop stale receipts.
func (s *Server) UpdateMessageStatus(c *gin.Context) {
	var event messageStatusEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(event.MessageID) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.messageSvc.UpdateStatus(c.Request.Context(), event.MessageID, event.status()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
