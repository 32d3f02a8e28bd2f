package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleOwner         = "owner"
	RoleAdministrator = "administrator"
	RoleDeveloper     = "developer"
)

const (
	TierFree   = "free"
	TierBasic  = "basic"
	TierPro    = "pro"
	TierGrowth = "growth"
)

// ValidRole reports whether role is one of the membership roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdministrator, RoleDeveloper:
		return true
	default:
		return false
	}
}

// ValidTier reports whether tier is one of the subscription tiers.
func ValidTier(tier string) bool {
	switch tier {
	case TierFree, TierBasic, TierPro, TierGrowth:
		return true
	default:
		return false
	}
}

type Service interface {
	// Create makes an organization and its first owner membership in one
	// atomic unit. This is the only way an organization comes into
	// existence.
	Create(ctx context.Context, userID snowflake.ID, req CreateRequest) (*Response, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Response, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]ListItem, error)
	Members(ctx context.Context, orgID snowflake.ID) ([]MemberView, error)

	// TransferOwnership demotes the current owner to administrator and
	// promotes the target member to owner, atomically.
	TransferOwnership(ctx context.Context, orgID, fromUserID, toUserID snowflake.ID) error

	// Leave removes the caller's membership. The last owner may not leave.
	Leave(ctx context.Context, orgID, userID snowflake.ID) error

	SetSubscriptionTier(ctx context.Context, orgID snowflake.ID, tier string) error

	// Delete removes the organization and everything it owns: members,
	// invites, contact links, messages and API keys. Owner only.
	Delete(ctx context.Context, orgID, actorUserID snowflake.ID) error
}

type CreateRequest struct {
	Name string
}

type Response struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	SubscriptionTier string    `json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ListItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberView is the denormalized membership row returned for display.
type MemberView struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	JoinedAt  time.Time `json:"joined_at"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidTier         = errors.New("invalid_subscription_tier")
	ErrNotFound            = errors.New("organization_not_found")
	ErrNotMember           = errors.New("not_a_member")
	ErrNotOwner            = errors.New("not_an_owner")
	ErrLastOwner           = errors.New("last_owner")
	ErrAlreadyMember       = errors.New("already_a_member")
)
