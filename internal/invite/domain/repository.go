package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods take the database handle per call so services can run
// them inside or outside a transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invite *OrganizationInvite) error
	FindByToken(ctx context.Context, db *gorm.DB, token string) (*OrganizationInvite, error)

	// ConsumeByToken deletes the invite only while it is still valid,
	// returning the affected row count. Zero rows means the token was
	// unknown, expired, or already consumed.
	ConsumeByToken(ctx context.Context, db *gorm.DB, token string, now time.Time) (int64, error)

	// DeleteExpired clears expired rows for one (org, email) pair so a
	// fresh invite can be issued against the unique constraint.
	DeleteExpired(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string, now time.Time) error

	DeleteByID(ctx context.Context, db *gorm.DB, orgID, inviteID snowflake.ID) (int64, error)
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]OrganizationInvite, error)
}
