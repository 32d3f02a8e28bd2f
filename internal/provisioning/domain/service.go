// Package domain defines the identity provisioning entry point.
package domain

import "context"

// DefaultOrganizationName is given to the organization created for every
// fresh identity.
const DefaultOrganizationName = "Default"

type Service interface {
	// HandleIdentityCreated is the push entry point for the external auth
	// provider's new-principal event. It registers the user and ensures a
	// default organization exists. Idempotent: replaying the event neither
	// duplicates the user nor creates a second organization.
	HandleIdentityCreated(ctx context.Context, req IdentityCreatedEvent) (*Provisioned, error)
}

type IdentityCreatedEvent struct {
	AuthID    string `json:"auth_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type Provisioned struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
}
