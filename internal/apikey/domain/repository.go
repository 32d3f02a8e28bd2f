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
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error

	// FindByShortKey returns the candidate rows sharing one short prefix.
	// Hash verification happens in the service.
	FindByShortKey(ctx context.Context, db *gorm.DB, shortKey string) ([]APIKey, error)

	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	Deactivate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (int64, error)
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]APIKey, error)
}
