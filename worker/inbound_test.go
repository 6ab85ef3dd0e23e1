package worker

import (
	"context"
	"testing"

	"sms-gateway-api/db"
	"sms-gateway-api/modem"
)

type fakeInboxLister struct {
	messages []modem.InboxMessage
	err      error
}

func (f *fakeInboxLister) ListInbox(ctx context.Context, boxType int) ([]modem.InboxMessage, error) {
	return f.messages, f.err
}

func setupWorkerTestDB(t *testing.T) {
	if err := db.ConnectWithConfig(db.Config{Driver: "sqlite", Database: ":memory:"}); err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	// messages.api_key_id is an enforced foreign key to api_keys.
	if _, err := db.CreateApiKey("key-1", "test key", "hash-key-1", "prefix-key-1", nil); err != nil {
		t.Fatalf("Failed to create test api key: %v", err)
	}
}

func TestInboundPoller_PersistsNewMessagesAndAdvancesCursor(t *testing.T) {
	setupWorkerTestDB(t)
	defer db.Close()

	lister := &fakeInboxLister{messages: []modem.InboxMessage{
		{Index: 1, Phone: "+1234567890", Content: "hi", Status: "unread"},
		{Index: 2, Phone: "+1112223333", Content: "hey", Status: "unread"},
	}}
	poller := NewInboundPoller(lister, 0)
	poller.tick(context.Background())

	if got := countIncomingMessages(t); got != 2 {
		t.Errorf("Expected 2 incoming messages, got %d", got)
	}

	cursor, err := db.GetInboundCursor(inboundCursorName)
	if err != nil {
		t.Fatalf("GetInboundCursor failed: %v", err)
	}
	if cursor != 2 {
		t.Errorf("Expected cursor to advance to 2, got %d", cursor)
	}
}

func TestInboundPoller_SkipsAlreadySeenIndices(t *testing.T) {
	setupWorkerTestDB(t)
	defer db.Close()

	if err := db.SetInboundCursor(inboundCursorName, 5); err != nil {
		t.Fatalf("SetInboundCursor failed: %v", err)
	}

	lister := &fakeInboxLister{messages: []modem.InboxMessage{
		{Index: 3, Phone: "+1234567890", Content: "old", Status: "unread"},
		{Index: 6, Phone: "+1234567890", Content: "new", Status: "unread"},
	}}
	poller := NewInboundPoller(lister, 0)
	poller.tick(context.Background())

	if got := countIncomingMessages(t); got != 1 {
		t.Errorf("Expected only the message past the cursor to be persisted, got %d", got)
	}
}

func countIncomingMessages(t *testing.T) int {
	var count int
	if err := db.DB.QueryRow(`SELECT COUNT(*) FROM messages WHERE direction = $1`, db.DirectionIncoming).Scan(&count); err != nil {
		t.Fatalf("Failed to count incoming messages: %v", err)
	}
	return count
}

func TestInboundPoller_ListErrorDoesNotAdvanceCursor(t *testing.T) {
	setupWorkerTestDB(t)
	defer db.Close()

	lister := &fakeInboxLister{err: context.DeadlineExceeded}
	poller := NewInboundPoller(lister, 0)
	poller.tick(context.Background())

	cursor, err := db.GetInboundCursor(inboundCursorName)
	if err != nil {
		t.Fatalf("GetInboundCursor failed: %v", err)
	}
	if cursor != 0 {
		t.Errorf("Expected cursor to stay at 0 after a list failure, got %d", cursor)
	}
}
