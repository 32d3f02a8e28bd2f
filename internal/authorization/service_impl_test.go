package authorization

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuthz(t *testing.T) (Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.Exec(`CREATE TABLE organization_members (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create members: %v", err)
	}

	enforcer, err := NewEnforcer(db)
	if err != nil {
		t.Fatalf("new enforcer: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	svc := NewService(Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer})
	return svc, db, node
}

func seedMember(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID, userID snowflake.ID, role string) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		node.Generate(), orgID, userID, role,
	).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

func TestAuthorizeRoleMatrix(t *testing.T) {
	svc, db, node := setupAuthz(t)
	orgID := node.Generate()
	owner := node.Generate()
	admin := node.Generate()
	dev := node.Generate()
	seedMember(t, db, node, orgID, owner, "owner")
	seedMember(t, db, node, orgID, admin, "administrator")
	seedMember(t, db, node, orgID, dev, "developer")

	ctx := context.Background()
	org := orgID.String()

	// Everyone with a membership may send messages.
	for _, userID := range []snowflake.ID{owner, admin, dev} {
		if err := svc.Authorize(ctx, "user:"+userID.String(), org, ObjectMessage, ActionMessageSend); err != nil {
			t.Fatalf("message.send for %s: %v", userID, err)
		}
	}

	// Only the owner may transfer or delete the organization.
	if err := svc.Authorize(ctx, "user:"+owner.String(), org, ObjectOrganization, ActionOrganizationTransfer); err != nil {
		t.Fatalf("owner transfer: %v", err)
	}
	for _, userID := range []snowflake.ID{admin, dev} {
		if err := svc.Authorize(ctx, "user:"+userID.String(), org, ObjectOrganization, ActionOrganizationDelete); err != ErrForbidden {
			t.Fatalf("expected ErrForbidden for %s, got %v", userID, err)
		}
	}

	// Developers may not manage invites or keys.
	if err := svc.Authorize(ctx, "user:"+dev.String(), org, ObjectInvite, ActionInviteCreate); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden for developer invite.create, got %v", err)
	}
	if err := svc.Authorize(ctx, "user:"+admin.String(), org, ObjectAPIKey, ActionAPIKeyCreate); err != nil {
		t.Fatalf("administrator api_key.create: %v", err)
	}
}

func TestAuthorizeNonMember(t *testing.T) {
	svc, _, node := setupAuthz(t)
	orgID := node.Generate()

	err := svc.Authorize(context.Background(), "user:"+node.Generate().String(), orgID.String(), ObjectMessage, ActionMessageSend)
	if err != ErrForbidden {
		t.Fatalf("expected ErrForbidden for non-member, got %v", err)
	}
}

func TestAuthorizeAPIKeyPermissions(t *testing.T) {
	svc, _, node := setupAuthz(t)
	org := node.Generate().String()
	keyID := node.Generate().String()
	ctx := context.Background()

	// send_only keys are limited to sending.
	sender := "api_key:" + keyID + ":send_only"
	if err := svc.Authorize(ctx, sender, org, ObjectMessage, ActionMessageSend); err != nil {
		t.Fatalf("send_only message.send: %v", err)
	}
	if err := svc.Authorize(ctx, sender, org, ObjectContact, ActionContactUpsert); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden for send_only contact.upsert, got %v", err)
	}

	// all keys get the full service surface.
	full := "api_key:" + node.Generate().String() + ":all"
	if err := svc.Authorize(ctx, full, org, ObjectContact, ActionContactUpsert); err != nil {
		t.Fatalf("all contact.upsert: %v", err)
	}

	if err := svc.Authorize(ctx, "api_key:"+keyID+":root", org, ObjectMessage, ActionMessageSend); err != ErrInvalidActor {
		t.Fatalf("expected ErrInvalidActor for unknown permission, got %v", err)
	}
}

func TestAuthorizeRoleChangeTakesEffect(t *testing.T) {
	svc, db, node := setupAuthz(t)
	orgID := node.Generate()
	userID := node.Generate()
	seedMember(t, db, node, orgID, userID, "owner")

	ctx := context.Background()
	actor := "user:" + userID.String()
	org := orgID.String()

	if err := svc.Authorize(ctx, actor, org, ObjectOrganization, ActionOrganizationDelete); err != nil {
		t.Fatalf("owner delete: %v", err)
	}

	// Demotion replaces the cached grouping on the next check.
	if err := db.Exec(
		`UPDATE organization_members SET role = 'developer' WHERE org_id = ? AND user_id = ?`,
		orgID, userID,
	).Error; err != nil {
		t.Fatalf("demote: %v", err)
	}
	if err := svc.Authorize(ctx, actor, org, ObjectOrganization, ActionOrganizationDelete); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden after demotion, got %v", err)
	}
}
