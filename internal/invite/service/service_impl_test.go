package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/textlane/textlane/internal/clock"
	invitedomain "github.com/textlane/textlane/internal/invite/domain"
	inviterepo "github.com/textlane/textlane/internal/invite/repository"
	orgdomain "github.com/textlane/textlane/internal/organization/domain"
	orgrepo "github.com/textlane/textlane/internal/organization/repository"
	userrepo "github.com/textlane/textlane/internal/user/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupInviteService(t *testing.T) (invitedomain.Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	prepareInviteSchema(t, db)

	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     inviterepo.Provide(),
		OrgRepo:  orgrepo.Provide(),
		UserRepo: userrepo.Provide(),
	})
	return svc, db, node, clk
}

func prepareInviteSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	statements := []string{
		`CREATE TABLE users (
			id BIGINT PRIMARY KEY,
			auth_id TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE organizations (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			subscription_tier TEXT NOT NULL DEFAULT 'free',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE organization_members (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_org_members_org_user ON organization_members (org_id, user_id)`,
		`CREATE TABLE organization_invites (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			email TEXT NOT NULL,
			role TEXT NOT NULL,
			token TEXT NOT NULL,
			invited_by BIGINT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_org_invites_token ON organization_invites (token)`,
		`CREATE UNIQUE INDEX ux_org_invites_org_email ON organization_invites (org_id, email)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func seedOrgAndInviter(t *testing.T, db *gorm.DB, node *snowflake.Node) (snowflake.ID, snowflake.ID) {
	t.Helper()
	orgID := node.Generate()
	inviterID := node.Generate()
	if err := db.Exec(
		`INSERT INTO organizations (id, name, slug, created_at, updated_at)
		 VALUES (?, 'Acme', 'acme', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		orgID,
	).Error; err != nil {
		t.Fatalf("seed org: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO users (id, auth_id, full_name, email, created_at, updated_at)
		 VALUES (?, ?, 'Ada Lovelace', 'ada@example.com', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		inviterID, "auth-"+inviterID.String(),
	).Error; err != nil {
		t.Fatalf("seed inviter: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, created_at, updated_at)
		 VALUES (?, ?, ?, 'owner', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		node.Generate(), orgID, inviterID,
	).Error; err != nil {
		t.Fatalf("seed owner membership: %v", err)
	}
	return orgID, inviterID
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func TestCreateInviteReturnsEnrichedDetails(t *testing.T) {
	svc, db, node, clk := setupInviteService(t)
	orgID, inviterID := seedOrgAndInviter(t, db, node)

	details, err := svc.Create(context.Background(), invitedomain.CreateRequest{
		OrgID:     orgID,
		Email:     "Bob@Example.com",
		Role:      orgdomain.RoleDeveloper,
		InvitedBy: inviterID,
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if details.Email != "bob@example.com" {
		t.Fatalf("expected lowercased email, got %s", details.Email)
	}
	if details.OrganizationName != "Acme" {
		t.Fatalf("expected org name Acme, got %s", details.OrganizationName)
	}
	if details.InviterName != "Ada Lovelace" || details.InviterEmail != "ada@example.com" {
		t.Fatalf("expected inviter display fields, got %+v", details)
	}
	if details.Token == "" || len(details.Token) != 64 {
		t.Fatalf("expected 64 hex char token, got %q", details.Token)
	}
	if want := clk.Now().Add(invitedomain.TTL); !details.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, details.ExpiresAt)
	}
}

func TestCreateInviteValidation(t *testing.T) {
	svc, db, node, _ := setupInviteService(t)
	orgID, inviterID := seedOrgAndInviter(t, db, node)

	_, err := svc.Create(context.Background(), invitedomain.CreateRequest{
		OrgID: orgID, Email: "not-an-email", Role: orgdomain.RoleDeveloper, InvitedBy: inviterID,
	})
	if err != invitedomain.ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}

	_, err = svc.Create(context.Background(), invitedomain.CreateRequest{
		OrgID: orgID, Email: "bob@example.com", Role: "superuser", InvitedBy: inviterID,
	})
	if err != invitedomain.ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestCreateInviteDuplicatePending(t *testing.T) {
	svc, db, node, clk := setupInviteService(t)
	orgID, inviterID := seedOrgAndInviter(t, db, node)

	req := invitedomain.CreateRequest{
		OrgID: orgID, Email: "bob@example.com", Role: orgdomain.RoleDeveloper, InvitedBy: inviterID,
	}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("first create: %v", err)
	}

	if _, err := svc.Create(context.Background(), req); err != invitedomain.ErrDuplicateInvite {
		t.Fatalf("expected ErrDuplicateInvite, got %v", err)
	}

	// Once the first invite expires a fresh one may be issued for the same
	// (org, email) pair.
	clk.Advance(invitedomain.TTL + time.Minute)
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("create after expiry: %v", err)
	}
}

func TestAcceptInviteCreatesMembership(t *testing.T) {
	svc, db, node, _ := setupInviteService(t)
	orgID, inviterID := seedOrgAndInviter(t, db, node)
	joiner := node.Generate()

	details, err := svc.Create(context.Background(), invitedomain.CreateRequest{
		OrgID: orgID, Email: "bob@example.com", Role: orgdomain.RoleAdministrator, InvitedBy: inviterID,
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if err := svc.Accept(context.Background(), details.Token, joiner); err != nil {
		t.Fatalf("accept: %v", err)
	}

	var role string
	if err := db.Raw(
		`SELECT role FROM organization_members WHERE org_id = ? AND user_id = ?`,
		orgID, joiner,
	).Scan(&role).Error; err != nil {
		t.Fatalf("read membership: %v", err)
	}
	if role != orgdomain.RoleAdministrator {
		t.Fatalf("expected administrator membership, got %q", role)
	}

	var remaining int
	if err := db.Raw(`SELECT COUNT(1) FROM organization_invites`).Scan(&remaining).Error; err != nil {
		t.Fatalf("count invites: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected invite consumed, got %d rows", remaining)
	}
}

func TestAcceptInviteSingleUse(t *testing.T) {
	svc, db, node, _ := setupInviteService(t)
	orgID, inviterID := seedOrgAndInviter(t, db, node)

	details, err := svc.Create(context.Background(), invitedomain.CreateRequest{
		OrgID: orgID, Email: "bob@example.com", Role: orgdomain.RoleDeveloper, InvitedBy: inviterID,
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if err := svc.Accept(context.Background(), details.Token, node.Generate()); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if err := svc.Accept(context.Background(), details.Token, node.Generate()); err != invitedomain.ErrInvalidOrExpired {
		t.Fatalf("expected ErrInvalidOrExpired on second accept, got %v", err)
	}
}

func TestAcceptInviteExpired(t *testing.T) {
	svc, db, node, clk := setupInviteService(t)
	orgID, inviterID := seedOrgAndInviter(t, db, node)

	details, err := svc.Create(context.Background(), invitedomain.CreateRequest{
		OrgID: orgID, Email: "bob@example.com", Role: orgdomain.RoleDeveloper, InvitedBy: inviterID,
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	clk.Advance(invitedomain.TTL + time.Second)
	if err := svc.Accept(context.Background(), details.Token, node.Generate()); err != invitedomain.ErrInvalidOrExpired {
		t.Fatalf("expected ErrInvalidOrExpired, got %v", err)
	}
}

func TestAcceptInviteUnknownToken(t *testing.T) {
	svc, _, node, _ := setupInviteService(t)

	err := svc.Accept(context.Background(), "no-such-token", node.Generate())
	if err != invitedomain.ErrInvalidOrExpired {
		t.Fatalf("expected ErrInvalidOrExpired, got %v", err)
	}
}

func TestAcceptInviteExistingMember(t *testing.T) {
	svc, db, node, _ := setupInviteService(t)
	orgID, inviterID := seedOrgAndInviter(t, db, node)

	details, err := svc.Create(context.Background(), invitedomain.CreateRequest{
		OrgID: orgID, Email: "ada@example.com", Role: orgdomain.RoleDeveloper, InvitedBy: inviterID,
	})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	// The inviter already holds a membership; accepting with the same user
	// must fail and roll back the consumption.
	if err := svc.Accept(context.Background(), details.Token, inviterID); err != orgdomain.ErrAlreadyMember {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	var remaining int
	if err := db.Raw(`SELECT COUNT(1) FROM organization_invites`).Scan(&remaining).Error; err != nil {
		t.Fatalf("count invites: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected invite preserved after rollback, got %d rows", remaining)
	}
}

func TestRevokeInvite(t *testing.T) {
	svc, _, node, _ := setupInviteService(t)
	orgID := node.Generate()

	if err := svc.Revoke(context.Background(), orgID, node.Generate()); err != invitedomain.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown invite, got %v", err)
	}
}

func TestRevokeThenAcceptFails(t *testing.T) {
	svc, _, node, _ := setupInviteService(t)
	orgID, _ := seedOrgAndInviterWith(t, svc, node)

	invites, err := svc.List(context.Background(), orgID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(invites) != 1 {
		t.Fatalf("expected 1 pending invite, got %d", len(invites))
	}

	inviteID, err := snowflake.ParseString(invites[0].ID)
	if err != nil {
		t.Fatalf("parse invite id: %v", err)
	}
	if err := svc.Revoke(context.Background(), orgID, inviteID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	invites, err = svc.List(context.Background(), orgID)
	if err != nil {
		t.Fatalf("list after revoke: %v", err)
	}
	if len(invites) != 0 {
		t.Fatalf("expected no pending invites, got %d", len(invites))
	}
}

// seedOrgAndInviterWith seeds an org, an inviter and one pending invite
// through the service under test.
func seedOrgAndInviterWith(t *testing.T, svc invitedomain.Service, node *snowflake.Node) (snowflake.ID, snowflake.ID) {
	t.Helper()
	s := svc.(*Service)
	orgID, inviterID := seedOrgAndInviter(t, s.db, node)
	if _, err := svc.Create(context.Background(), invitedomain.CreateRequest{
		OrgID: orgID, Email: "bob@example.com", Role: orgdomain.RoleDeveloper, InvitedBy: inviterID,
	}); err != nil {
		t.Fatalf("seed invite: %v", err)
	}
	return orgID, inviterID
}
