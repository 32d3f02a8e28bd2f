package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/textlane/textlane/internal/clock"
	contactdomain "github.com/textlane/textlane/internal/contact/domain"
	"github.com/textlane/textlane/internal/contact/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupContactService(t *testing.T) (contactdomain.Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
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
	prepareContactSchema(t, db)

	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, db, node, clk
}

func prepareContactSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	statements := []string{
		`CREATE TABLE contacts (
			id BIGINT PRIMARY KEY,
			phone_number TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_contacts_phone ON contacts (phone_number)`,
		`CREATE TABLE organization_contacts (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			contact_id BIGINT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			subscribed BOOLEAN NOT NULL DEFAULT true,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_org_contacts_org_contact ON organization_contacts (org_id, contact_id)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func TestGetOrCreateDeduplicates(t *testing.T) {
	svc, db, _, _ := setupContactService(t)

	first, err := svc.GetOrCreate(context.Background(), "+1 (234) 567-8901")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.GetOrCreate(context.Background(), "+12345678901")
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same contact id, got %s vs %s", first.ID, second.ID)
	}
	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM contacts`).Scan(&count).Error; err != nil {
		t.Fatalf("count contacts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 canonical contact, got %d", count)
	}
}

func TestGetOrCreateRejectsBadNumbers(t *testing.T) {
	svc, _, _, _ := setupContactService(t)

	for _, raw := range []string{"12345", "+1234567890123456", "not a phone"} {
		if _, err := svc.GetOrCreate(context.Background(), raw); err != contactdomain.ErrInvalidPhoneFormat {
			t.Fatalf("GetOrCreate(%q): expected ErrInvalidPhoneFormat, got %v", raw, err)
		}
	}
}

func TestUpsertIsIdempotentAndOverwrites(t *testing.T) {
	svc, db, node, _ := setupContactService(t)
	orgID := node.Generate()

	firstID, err := svc.Upsert(context.Background(), orgID, contactdomain.UpsertRequest{
		PhoneNumber: "+12345678901",
		FirstName:   "Grace",
		LastName:    "Hopper",
		Subscribed:  true,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	secondID, err := svc.Upsert(context.Background(), orgID, contactdomain.UpsertRequest{
		PhoneNumber: "+1 234-567-8901",
		FirstName:   "Amazing",
		LastName:    "Grace",
		Subscribed:  false,
		Notes:       "prefers email",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if firstID != secondID {
		t.Fatalf("expected same contact id across upserts, got %s vs %s", firstID, secondID)
	}

	var row struct {
		FirstName  string
		LastName   string
		Subscribed bool
		Notes      string
	}
	if err := db.Raw(
		`SELECT first_name, last_name, subscribed, notes
		 FROM organization_contacts WHERE org_id = ? AND contact_id = ?`,
		orgID, firstID,
	).Scan(&row).Error; err != nil {
		t.Fatalf("read link: %v", err)
	}
	if row.FirstName != "Amazing" || row.LastName != "Grace" || row.Subscribed || row.Notes != "prefers email" {
		t.Fatalf("expected second call's values, got %+v", row)
	}

	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM organization_contacts`).Scan(&count).Error; err != nil {
		t.Fatalf("count links: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 relationship row, got %d", count)
	}
}

func TestUpsertIsolatesTenants(t *testing.T) {
	svc, db, node, _ := setupContactService(t)
	orgA := node.Generate()
	orgB := node.Generate()

	idA, err := svc.Upsert(context.Background(), orgA, contactdomain.UpsertRequest{
		PhoneNumber: "+12345678901", FirstName: "A", Subscribed: true,
	})
	if err != nil {
		t.Fatalf("org A upsert: %v", err)
	}
	idB, err := svc.Upsert(context.Background(), orgB, contactdomain.UpsertRequest{
		PhoneNumber: "+12345678901", FirstName: "B", Subscribed: true,
	})
	if err != nil {
		t.Fatalf("org B upsert: %v", err)
	}

	// Same canonical contact, two independent relationship rows.
	if idA != idB {
		t.Fatalf("expected shared canonical contact, got %s vs %s", idA, idB)
	}
	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM organization_contacts`).Scan(&count).Error; err != nil {
		t.Fatalf("count links: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 relationship rows, got %d", count)
	}
}

func TestSearchMatchesAndFilters(t *testing.T) {
	svc, _, node, clk := setupContactService(t)
	orgID := node.Generate()
	otherOrg := node.Generate()

	seed := []contactdomain.UpsertRequest{
		{PhoneNumber: "+12025550101", FirstName: "Grace", LastName: "Hopper", Subscribed: true},
		{PhoneNumber: "+12025550102", FirstName: "Alan", LastName: "Turing", Subscribed: false},
		{PhoneNumber: "+447911123456", FirstName: "Ada", LastName: "Lovelace", Subscribed: true},
	}
	for _, req := range seed {
		if _, err := svc.Upsert(context.Background(), orgID, req); err != nil {
			t.Fatalf("seed %s: %v", req.PhoneNumber, err)
		}
		clk.Advance(time.Minute)
	}
	if _, err := svc.Upsert(context.Background(), otherOrg, contactdomain.UpsertRequest{
		PhoneNumber: "+12025550103", FirstName: "Grace", Subscribed: true,
	}); err != nil {
		t.Fatalf("seed other org: %v", err)
	}

	// Case-insensitive name match scoped to the organization.
	views, err := svc.Search(context.Background(), orgID, contactdomain.SearchRequest{Query: "grace"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(views) != 1 || views[0].LastName != "Hopper" {
		t.Fatalf("expected only Hopper, got %+v", views)
	}

	// Substring match over the phone number.
	views, err = svc.Search(context.Background(), orgID, contactdomain.SearchRequest{Query: "202555"})
	if err != nil {
		t.Fatalf("search phone: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(views))
	}

	// Subscribed filter drops the unsubscribed row.
	views, err = svc.Search(context.Background(), orgID, contactdomain.SearchRequest{SubscribedOnly: true})
	if err != nil {
		t.Fatalf("search subscribed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 subscribed contacts, got %d", len(views))
	}

	// No query returns everything, most recent relationship first.
	views, err = svc.Search(context.Background(), orgID, contactdomain.SearchRequest{})
	if err != nil {
		t.Fatalf("search all: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 contacts, got %d", len(views))
	}
	if views[0].LastName != "Lovelace" {
		t.Fatalf("expected most recent first, got %+v", views[0])
	}
}
