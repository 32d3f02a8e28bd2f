package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/textlane/textlane/internal/clock"
	messagedomain "github.com/textlane/textlane/internal/message/domain"
	"github.com/textlane/textlane/internal/message/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupMessageService(t *testing.T) (messagedomain.Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
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

	if err := db.Exec(`CREATE TABLE messages (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		sender_user_id BIGINT,
		message_id TEXT NOT NULL,
		recipient TEXT NOT NULL,
		body TEXT NOT NULL,
		service TEXT NOT NULL,
		status TEXT NOT NULL,
		sms_fallback BOOLEAN NOT NULL DEFAULT false,
		sent_at TIMESTAMP NOT NULL,
		delivered_at TIMESTAMP,
		read_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create messages: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX ux_messages_message_id ON messages (message_id)`).Error; err != nil {
		t.Fatalf("create message index: %v", err)
	}

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

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func recordOne(t *testing.T, svc messagedomain.Service, orgID snowflake.ID) *messagedomain.Message {
	t.Helper()
	msg, err := svc.Record(context.Background(), orgID, messagedomain.RecordRequest{
		Recipient: "+12025550101",
		Body:      "hello",
		Service:   messagedomain.ServiceSMS,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	return msg
}

func TestRecordStampsPendingAndSentAt(t *testing.T) {
	svc, _, node, clk := setupMessageService(t)
	msg := recordOne(t, svc, node.Generate())

	if msg.Status != messagedomain.StatusPending {
		t.Fatalf("expected pending, got %s", msg.Status)
	}
	if !msg.SentAt.Equal(clk.Now()) {
		t.Fatalf("expected sent_at stamped at creation, got %v", msg.SentAt)
	}
	if !strings.HasPrefix(msg.MessageID, "msg_") || len(msg.MessageID) != 4+26 {
		t.Fatalf("expected msg_ prefixed ulid, got %q", msg.MessageID)
	}
	if msg.DeliveredAt != nil || msg.ReadAt != nil {
		t.Fatalf("expected delivery timestamps unset at creation")
	}
}

func TestRecordValidation(t *testing.T) {
	svc, _, node, _ := setupMessageService(t)
	orgID := node.Generate()

	cases := []struct {
		req  messagedomain.RecordRequest
		want error
	}{
		{messagedomain.RecordRequest{Recipient: "12345", Body: "hi", Service: "sms"}, messagedomain.ErrInvalidRecipient},
		{messagedomain.RecordRequest{Recipient: "+12025550101", Body: "  ", Service: "sms"}, messagedomain.ErrEmptyBody},
		{messagedomain.RecordRequest{Recipient: "+12025550101", Body: "hi", Service: "fax"}, messagedomain.ErrInvalidService},
	}
	for _, tc := range cases {
		if _, err := svc.Record(context.Background(), orgID, tc.req); err != tc.want {
			t.Fatalf("Record(%+v): expected %v, got %v", tc.req, tc.want, err)
		}
	}
}

func TestUpdateStatusForwardPath(t *testing.T) {
	svc, _, node, clk := setupMessageService(t)
	orgID := node.Generate()
	msg := recordOne(t, svc, orgID)

	for _, status := range []string{
		messagedomain.StatusSent,
		messagedomain.StatusDelivered,
		messagedomain.StatusRead,
	} {
		clk.Advance(time.Second)
		if err := svc.UpdateStatus(context.Background(), msg.MessageID, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	got, err := svc.Get(context.Background(), orgID, msg.MessageID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != messagedomain.StatusRead {
		t.Fatalf("expected read, got %s", got.Status)
	}
	if got.DeliveredAt == nil || got.ReadAt == nil {
		t.Fatalf("expected delivery timestamps recorded, got %+v", got)
	}
	if !got.ReadAt.After(*got.DeliveredAt) {
		t.Fatalf("expected read_at after delivered_at")
	}
}

func TestUpdateStatusRejectsBackward(t *testing.T) {
	svc, _, node, _ := setupMessageService(t)
	orgID := node.Generate()
	msg := recordOne(t, svc, orgID)

	if err := svc.UpdateStatus(context.Background(), msg.MessageID, messagedomain.StatusSent); err != nil {
		t.Fatalf("to sent: %v", err)
	}
	if err := svc.UpdateStatus(context.Background(), msg.MessageID, messagedomain.StatusDelivered); err != nil {
		t.Fatalf("to delivered: %v", err)
	}

	for _, status := range []string{
		messagedomain.StatusPending,
		messagedomain.StatusSent,
		messagedomain.StatusFailed,
	} {
		if err := svc.UpdateStatus(context.Background(), msg.MessageID, status); err != messagedomain.ErrInvalidTransition {
			t.Fatalf("transition delivered->%s: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestUpdateStatusRejectsSkip(t *testing.T) {
	svc, _, node, _ := setupMessageService(t)
	msg := recordOne(t, svc, node.Generate())

	// pending may not jump straight to delivered or read.
	for _, status := range []string{messagedomain.StatusDelivered, messagedomain.StatusRead} {
		if err := svc.UpdateStatus(context.Background(), msg.MessageID, status); err != messagedomain.ErrInvalidTransition {
			t.Fatalf("transition pending->%s: expected ErrInvalidTransition, got %v", status, err)
		}
	}
}

func TestUpdateStatusFailedFromPendingAndSent(t *testing.T) {
	svc, _, node, _ := setupMessageService(t)
	orgID := node.Generate()

	first := recordOne(t, svc, orgID)
	if err := svc.UpdateStatus(context.Background(), first.MessageID, messagedomain.StatusFailed); err != nil {
		t.Fatalf("pending->failed: %v", err)
	}

	second := recordOne(t, svc, orgID)
	if err := svc.UpdateStatus(context.Background(), second.MessageID, messagedomain.StatusSent); err != nil {
		t.Fatalf("to sent: %v", err)
	}
	if err := svc.UpdateStatus(context.Background(), second.MessageID, messagedomain.StatusFailed); err != nil {
		t.Fatalf("sent->failed: %v", err)
	}

	// failed is terminal.
	if err := svc.UpdateStatus(context.Background(), second.MessageID, messagedomain.StatusSent); err != messagedomain.ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition out of failed, got %v", err)
	}
}

func TestUpdateStatusUnknownMessage(t *testing.T) {
	svc, _, _, _ := setupMessageService(t)

	if err := svc.UpdateStatus(context.Background(), "msg_missing", messagedomain.StatusSent); err != messagedomain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.UpdateStatus(context.Background(), "msg_missing", "teleported"); err != messagedomain.ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestGetAndListAreOrgScoped(t *testing.T) {
	svc, _, node, clk := setupMessageService(t)
	orgA := node.Generate()
	orgB := node.Generate()

	msgA := recordOne(t, svc, orgA)
	clk.Advance(time.Second)
	recordOne(t, svc, orgA)
	clk.Advance(time.Second)
	msgB := recordOne(t, svc, orgB)

	// Another tenant's id does not resolve, even though it exists.
	if _, err := svc.Get(context.Background(), orgB, msgA.MessageID); err != messagedomain.ErrNotFound {
		t.Fatalf("expected cross-tenant get to fail, got %v", err)
	}
	if _, err := svc.Get(context.Background(), orgA, msgA.MessageID); err != nil {
		t.Fatalf("same-tenant get: %v", err)
	}

	msgsA, err := svc.List(context.Background(), orgA, messagedomain.ListRequest{})
	if err != nil {
		t.Fatalf("list A: %v", err)
	}
	if len(msgsA) != 2 {
		t.Fatalf("expected 2 messages for org A, got %d", len(msgsA))
	}
	for _, m := range msgsA {
		if m.MessageID == msgB.MessageID {
			t.Fatalf("org B message leaked into org A listing")
		}
	}
	// Most recent first.
	if !msgsA[0].SentAt.After(msgsA[1].SentAt) {
		t.Fatalf("expected newest message first")
	}
}
