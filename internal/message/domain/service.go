package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	ServiceSMS      = "sms"
	ServiceIMessage = "imessage"
)

const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// ValidService reports whether svc is a supported delivery channel.
func ValidService(svc string) bool {
	switch svc {
	case ServiceSMS, ServiceIMessage:
		return true
	default:
		return false
	}
}

var transitions = map[string]map[string]bool{
	StatusPending: {
		StatusSent:   true,
		StatusFailed: true,
	},
	StatusSent: {
		StatusDelivered: true,
		StatusRead:      true,
		StatusFailed:    true,
	},
	StatusDelivered: {
		StatusRead: true,
	},
	// read and failed are terminal
	StatusRead:   {},
	StatusFailed: {},
}

// CanTransition reports whether a status change moves forward through the
// delivery state machine. Backward and skipping writes that would unset a
// recorded timestamp are refused.
func CanTransition(from, to string) bool {
	allowed, ok := transitions[from]
	return ok && allowed[to]
}

// ValidStatus reports whether status names a known delivery state.
func ValidStatus(status string) bool {
	_, ok := transitions[status]
	return ok
}

type Service interface {
	// Record tracks a new message in the pending state with a fresh
	// external message id. SentAt is stamped at creation time; it marks
	// submission, not delivery confirmation.
	Record(ctx context.Context, orgID snowflake.ID, req RecordRequest) (*Message, error)

	// UpdateStatus advances the delivery state machine. Transitions that
	// move backward or skip are rejected.
	UpdateStatus(ctx context.Context, messageID, status string) error

	Get(ctx context.Context, orgID snowflake.ID, messageID string) (*Message, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) ([]Message, error)
}

type RecordRequest struct {
	SenderUserID *snowflake.ID
	Recipient    string
	Body         string
	Service      string
	SMSFallback  bool
}

type ListRequest struct {
	Limit  int
	Offset int
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidRecipient    = errors.New("invalid_recipient")
	ErrEmptyBody           = errors.New("empty_body")
	ErrInvalidService      = errors.New("invalid_service")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidTransition   = errors.New("invalid_status_transition")
	ErrNotFound            = errors.New("message_not_found")
)
