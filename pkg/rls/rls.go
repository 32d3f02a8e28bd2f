package rls

import (
	"fmt"

	"gorm.io/gorm"
)

// WithTenant pins the transaction to one organization. Postgres row-level
// security policies on the tenant tables read app.current_org_id, so even a
// buggy query inside tx cannot touch another organization's rows.
func WithTenant(tx *gorm.DB, tenantID int64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(
		"SET LOCAL app.current_org_id = ?",
		fmt.Sprintf("%d", tenantID),
	).Error
}
