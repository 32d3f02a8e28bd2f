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
	Insert(ctx context.Context, db *gorm.DB, msg *Message) error
	FindByMessageID(ctx context.Context, db *gorm.DB, messageID string) (*Message, error)
	FindByOrgAndMessageID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, messageID string) (*Message, error)

	// SetStatusIf updates the status only while the row still holds
	// fromStatus, stamping deliveredAt or readAt when the new status first
	// reaches that state. Returns the affected row count.
	SetStatusIf(ctx context.Context, db *gorm.DB, messageID, fromStatus, toStatus string, now time.Time) (int64, error)

	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit, offset int) ([]Message, error)
}
