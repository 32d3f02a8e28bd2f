package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	messagedomain "github.com/textlane/textlane/internal/message/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() messagedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, msg *messagedomain.Message) error {
	return db.WithContext(ctx).Create(msg).Error
}

func (r *repo) FindByMessageID(ctx context.Context, db *gorm.DB, messageID string) (*messagedomain.Message, error) {
	var msg messagedomain.Message
	err := db.WithContext(ctx).First(&msg, "message_id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *repo) FindByOrgAndMessageID(ctx context.Context, db *gorm.DB, orgID snowflake.ID, messageID string) (*messagedomain.Message, error) {
	var msg messagedomain.Message
	err := db.WithContext(ctx).First(&msg, "org_id = ? AND message_id = ?", orgID, messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *repo) SetStatusIf(ctx context.Context, db *gorm.DB, messageID, fromStatus, toStatus string, now time.Time) (int64, error) {
	// The status guard makes the update conditional: a racing webhook that
	// already advanced the row turns this into a zero-row write instead of
	// a backward transition. delivered_at and read_at are set-once.
	result := db.WithContext(ctx).Exec(
		`UPDATE messages SET
			status = ?,
			delivered_at = CASE WHEN ? = 'delivered' AND delivered_at IS NULL THEN ? ELSE delivered_at END,
			read_at = CASE WHEN ? = 'read' AND read_at IS NULL THEN ? ELSE read_at END,
			updated_at = ?
		 WHERE message_id = ? AND status = ?`,
		toStatus, toStatus, now, toStatus, now, now, messageID, fromStatus,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, limit, offset int) ([]messagedomain.Message, error) {
	var msgs []messagedomain.Message
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("sent_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}
