package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Role      string
	CreatedAt time.Time
}

// MemberRow is a membership joined with the user's display fields.
type MemberRow struct {
	UserID    snowflake.ID
	Role      string
	FullName  string
	Email     string
	AvatarURL string
	CreatedAt time.Time
}

// Repository methods take the database handle per call so services can run
// them inside or outside a transaction.
type Repository interface {
	CreateOrganization(ctx context.Context, db *gorm.DB, org *Organization) error
	GetOrganization(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organization, error)
	UpdateSubscriptionTier(ctx context.Context, db *gorm.DB, id snowflake.ID, tier string, now time.Time) (int64, error)
	DeleteOrganizationCascade(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	AddMember(ctx context.Context, db *gorm.DB, member *OrganizationMember) error
	FindMember(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (*OrganizationMember, error)
	CountOwners(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)

	// SetRoleIf updates a member's role only when the member currently holds
	// fromRole, returning the affected row count.
	SetRoleIf(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID, fromRole, toRole string, now time.Time) (int64, error)

	// DeleteMemberUnlessLastOwner removes the membership in a single
	// conditional statement: a row is deleted only if it exists and either
	// is not an owner or has at least one co-owner.
	DeleteMemberUnlessLastOwner(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (int64, error)

	ListMembers(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]MemberRow, error)
	ListOrganizationsByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]OrganizationListItem, error)
}
