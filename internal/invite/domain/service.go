package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// TTL is the fixed validity window for an invite token.
const TTL = 72 * time.Hour

type Service interface {
	// Create issues a single-use invite token for an email address. At most
	// one pending invite exists per (organization, email).
	Create(ctx context.Context, req CreateRequest) (*Details, error)

	// Accept consumes the invite named by token and creates the membership,
	// atomically. Of two racing acceptances exactly one succeeds.
	Accept(ctx context.Context, token string, userID snowflake.ID) error

	// Revoke deletes a pending invite without creating a membership.
	Revoke(ctx context.Context, orgID, inviteID snowflake.ID) error

	List(ctx context.Context, orgID snowflake.ID) ([]Details, error)
}

type CreateRequest struct {
	OrgID     snowflake.ID
	Email     string
	Role      string
	InvitedBy snowflake.ID
}

// Details is the enriched invite view computed at issuance time, carrying
// the display fields a notification needs without a later join.
type Details struct {
	ID               string    `json:"id"`
	OrgID            string    `json:"org_id"`
	OrganizationName string    `json:"organization_name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	Token            string    `json:"token,omitempty"`
	InviterName      string    `json:"inviter_name"`
	InviterEmail     string    `json:"inviter_email"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
}

var (
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrDuplicateInvite  = errors.New("duplicate_pending_invite")
	ErrInvalidOrExpired = errors.New("invalid_or_expired_invite")
	ErrNotFound         = errors.New("invite_not_found")
)
