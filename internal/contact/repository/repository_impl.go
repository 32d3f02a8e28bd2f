package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	contactdomain "github.com/textlane/textlane/internal/contact/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() contactdomain.Repository {
	return &repo{}
}

func (r *repo) InsertContact(ctx context.Context, db *gorm.DB, contact *contactdomain.Contact) error {
	return db.WithContext(ctx).Create(contact).Error
}

func (r *repo) FindContactByPhone(ctx context.Context, db *gorm.DB, phone string) (*contactdomain.Contact, error) {
	var contact contactdomain.Contact
	err := db.WithContext(ctx).First(&contact, "phone_number = ?", phone).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *repo) UpsertOrganizationContact(ctx context.Context, db *gorm.DB, link *contactdomain.OrganizationContact) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "contact_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_name", "last_name", "email", "subscribed", "notes", "updated_at",
		}),
	}).Create(link).Error
}

func (r *repo) Search(ctx context.Context, db *gorm.DB, orgID snowflake.ID, query string, subscribedOnly bool) ([]contactdomain.View, error) {
	stmt := db.WithContext(ctx).
		Table("organization_contacts AS oc").
		Select(`oc.contact_id, c.phone_number, oc.first_name, oc.last_name,
			oc.email, oc.subscribed, oc.notes, oc.created_at`).
		Joins("JOIN contacts c ON c.id = oc.contact_id").
		Where("oc.org_id = ?", orgID)

	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		stmt = stmt.Where(
			`LOWER(c.phone_number) LIKE ? OR LOWER(oc.first_name) LIKE ? OR LOWER(oc.last_name) LIKE ?`,
			pattern, pattern, pattern,
		)
	}
	if subscribedOnly {
		stmt = stmt.Where("oc.subscribed = ?", true)
	}

	var views []contactdomain.View
	err := stmt.Order("oc.created_at DESC").Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}
