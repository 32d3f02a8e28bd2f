package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/textlane/textlane/internal/apikey/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Create(key).Error
}

func (r *repo) FindByShortKey(ctx context.Context, db *gorm.DB, shortKey string) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).
		Where("short_key = ?", shortKey).
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET last_used_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	).Error
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE api_keys SET is_active = ?, updated_at = ? WHERE org_id = ? AND id = ? AND is_active = ?`,
		false, now, orgID, id, true,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}
