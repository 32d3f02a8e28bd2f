package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/textlane/textlane/internal/organization/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() orgdomain.Repository {
	return &repo{}
}

func (r *repo) CreateOrganization(ctx context.Context, db *gorm.DB, org *orgdomain.Organization) error {
	return db.WithContext(ctx).Create(org).Error
}

func (r *repo) GetOrganization(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orgdomain.Organization, error) {
	var org orgdomain.Organization
	err := db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repo) UpdateSubscriptionTier(ctx context.Context, db *gorm.DB, id snowflake.ID, tier string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE organizations SET subscription_tier = ?, updated_at = ? WHERE id = ?`,
		tier, now, id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteOrganizationCascade(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	// Explicit cascade: remove everything the organization owns before the
	// organization row itself. Foreign keys repeat this server-side.
	statements := []string{
		`DELETE FROM api_keys WHERE org_id = ?`,
		`DELETE FROM messages WHERE org_id = ?`,
		`DELETE FROM organization_contacts WHERE org_id = ?`,
		`DELETE FROM organization_invites WHERE org_id = ?`,
		`DELETE FROM organization_members WHERE org_id = ?`,
		`DELETE FROM organizations WHERE id = ?`,
	}
	for _, stmt := range statements {
		if err := db.WithContext(ctx).Exec(stmt, id).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) AddMember(ctx context.Context, db *gorm.DB, member *orgdomain.OrganizationMember) error {
	return db.WithContext(ctx).Create(member).Error
}

func (r *repo) FindMember(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (*orgdomain.OrganizationMember, error) {
	var member orgdomain.OrganizationMember
	err := db.WithContext(ctx).First(&member, "org_id = ? AND user_id = ?", orgID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repo) CountOwners(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&orgdomain.OrganizationMember{}).
		Where("org_id = ? AND role = ?", orgID, orgdomain.RoleOwner).
		Count(&count).Error
	return count, err
}

func (r *repo) SetRoleIf(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID, fromRole, toRole string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE organization_members SET role = ?, updated_at = ?
		 WHERE org_id = ? AND user_id = ? AND role = ?`,
		toRole, now, orgID, userID, fromRole,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteMemberUnlessLastOwner(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (int64, error) {
	// Set-based conditional delete: under concurrent leaves the subquery and
	// the delete see the same snapshot, so two co-owners racing cannot both
	// remove themselves.
	result := db.WithContext(ctx).Exec(
		`DELETE FROM organization_members
		 WHERE org_id = ? AND user_id = ?
		   AND (role <> ?
		        OR (SELECT COUNT(*) FROM organization_members o
		            WHERE o.org_id = ? AND o.role = ?) > 1)`,
		orgID, userID, orgdomain.RoleOwner, orgID, orgdomain.RoleOwner,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListMembers(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]orgdomain.MemberRow, error) {
	var rows []orgdomain.MemberRow
	err := db.WithContext(ctx).Raw(
		`SELECT m.user_id, m.role, m.created_at, u.full_name, u.email, u.avatar_url
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = ?
		 ORDER BY m.created_at ASC`,
		orgID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListOrganizationsByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]orgdomain.OrganizationListItem, error) {
	var items []orgdomain.OrganizationListItem
	err := db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, m.role, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY o.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
