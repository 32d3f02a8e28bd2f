package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	PermissionAll      = "all"
	PermissionSendOnly = "send_only"
)

// ValidPermission reports whether perm is a supported key permission.
func ValidPermission(perm string) bool {
	switch perm {
	case PermissionAll, PermissionSendOnly:
		return true
	default:
		return false
	}
}

type Service interface {
	// Issue mints a new credential. The plaintext is returned exactly once
	// and never persisted.
	Issue(ctx context.Context, req IssueRequest) (*Issued, error)

	// Authenticate verifies a presented plaintext key against the stored
	// hashes and, on success, records the use without blocking the caller.
	Authenticate(ctx context.Context, presentedKey string) (*Identity, error)

	List(ctx context.Context, orgID snowflake.ID) ([]View, error)

	// Revoke flips the key inactive. The row stays for auditability.
	Revoke(ctx context.Context, orgID, keyID snowflake.ID) error
}

type IssueRequest struct {
	OrgID      snowflake.ID
	UserID     snowflake.ID
	Name       string
	Permission string
}

// Issued carries the one-time plaintext alongside the stored record fields.
type Issued struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PlaintextKey string    `json:"key"`
	ShortKey     string    `json:"short_key"`
	Permission   string    `json:"permission"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated principal an API key resolves to.
type Identity struct {
	KeyID      snowflake.ID
	OrgID      snowflake.ID
	UserID     snowflake.ID
	Permission string
}

type View struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ShortKey   string     `json:"short_key"`
	Permission string     `json:"permission"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPermission   = errors.New("invalid_permission")
	ErrInvalidCredential   = errors.New("invalid_credential")
	ErrInactive            = errors.New("inactive_credential")
	ErrNotFound            = errors.New("api_key_not_found")
)
