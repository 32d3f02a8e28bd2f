package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invitedomain "github.com/textlane/textlane/internal/invite/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invitedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invite *invitedomain.OrganizationInvite) error {
	return db.WithContext(ctx).Create(invite).Error
}

func (r *repo) FindByToken(ctx context.Context, db *gorm.DB, token string) (*invitedomain.OrganizationInvite, error) {
	var invite invitedomain.OrganizationInvite
	err := db.WithContext(ctx).First(&invite, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *repo) ConsumeByToken(ctx context.Context, db *gorm.DB, token string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM organization_invites WHERE token = ? AND expires_at > ?`,
		token, now,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteExpired(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM organization_invites WHERE org_id = ? AND email = ? AND expires_at <= ?`,
		orgID, email, now,
	).Error
}

func (r *repo) DeleteByID(ctx context.Context, db *gorm.DB, orgID, inviteID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM organization_invites WHERE org_id = ? AND id = ?`,
		orgID, inviteID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]invitedomain.OrganizationInvite, error) {
	var invites []invitedomain.OrganizationInvite
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&invites).Error
	if err != nil {
		return nil, err
	}
	return invites, nil
}
