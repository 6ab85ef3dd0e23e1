package db

import (
	"strings"
	"testing"
)

func setupMessagesTestDB(t *testing.T) {
	if err := ConnectWithConfig(Config{Driver: "sqlite", Database: ":memory:"}); err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
}

// createTestApiKeys inserts api_keys rows for the given ids, since
// messages.api_key_id is a foreign key enforced on the test database.
func createTestApiKeys(t *testing.T, ids ...string) {
	for _, id := range ids {
		if _, err := CreateApiKey(id, id, "hash-"+id, "prefix-"+id, nil); err != nil {
			t.Fatalf("CreateApiKey(%q) failed: %v", id, err)
		}
	}
}

func TestCreateOutgoing_RejectsOversizedContent(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()

	if _, err := CreateOutgoing("+1234567890", strings.Repeat("a", maxContentLength+1), "key-1"); err != ErrContentTooLong {
		t.Errorf("Expected ErrContentTooLong, got %v", err)
	}
}

func TestMessageStateMachine_HappyPath(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()
	createTestApiKeys(t, "key-1")

	msg, err := CreateOutgoing("+1234567890", "hello", "key-1")
	if err != nil {
		t.Fatalf("CreateOutgoing failed: %v", err)
	}

	if err := MarkSending(msg.ID); err != nil {
		t.Fatalf("MarkSending failed: %v", err)
	}
	if err := MarkSent(msg.ID, "modem-123"); err != nil {
		t.Fatalf("MarkSent failed: %v", err)
	}
	if err := MarkDelivered(msg.ID); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}

	got, err := GetMessage(msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.Status != StatusDelivered {
		t.Errorf("Expected status delivered, got %q", got.Status)
	}
	if got.DeliveredAt == nil {
		t.Error("Expected deliveredAt to be set")
	}
}

func TestMarkSending_RejectsDoubleClaim(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()
	createTestApiKeys(t, "key-1")

	msg, err := CreateOutgoing("+1234567890", "hello", "key-1")
	if err != nil {
		t.Fatalf("CreateOutgoing failed: %v", err)
	}

	if err := MarkSending(msg.ID); err != nil {
		t.Fatalf("First MarkSending failed: %v", err)
	}
	if err := MarkSending(msg.ID); err != ErrInvalidTransition {
		t.Errorf("Expected ErrInvalidTransition on a second concurrent claim, got %v", err)
	}
}

func TestMarkFailed_FromSendingIsTerminal(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()
	createTestApiKeys(t, "key-1")

	msg, err := CreateOutgoing("+1234567890", "hello", "key-1")
	if err != nil {
		t.Fatalf("CreateOutgoing failed: %v", err)
	}
	if err := MarkSending(msg.ID); err != nil {
		t.Fatalf("MarkSending failed: %v", err)
	}
	if err := MarkFailed(msg.ID, "modem rejected"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	if err := MarkSent(msg.ID, "modem-123"); err != ErrInvalidTransition {
		t.Errorf("Expected ErrInvalidTransition moving out of a terminal failed state, got %v", err)
	}
}

func TestCreateIncoming_DedupesByModemInboxIndex(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()

	if _, err := CreateIncoming("+1234567890", "hi", 7, map[string]any{}); err != nil {
		t.Fatalf("First CreateIncoming failed: %v", err)
	}
	if _, err := CreateIncoming("+1234567890", "hi again", 7, map[string]any{}); err == nil {
		t.Error("Expected a unique constraint violation on a repeated modem inbox index")
	}
}

func TestListMessages_ScopedToApiKey(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()
	createTestApiKeys(t, "key-1", "key-2")

	if _, err := CreateOutgoing("+1234567890", "hello", "key-1"); err != nil {
		t.Fatalf("CreateOutgoing failed: %v", err)
	}
	if _, err := CreateOutgoing("+1234567890", "hello", "key-2"); err != nil {
		t.Fatalf("CreateOutgoing failed: %v", err)
	}

	messages, err := ListMessages(MessageFilters{ApiKeyID: "key-1", Limit: 50})
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Errorf("Expected 1 message scoped to key-1, got %d", len(messages))
	}
}

func TestListMessages_IncludesIncomingRegardlessOfCaller(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()
	createTestApiKeys(t, "key-1")

	if _, err := CreateIncoming("+1234567890", "hi", 1, map[string]any{}); err != nil {
		t.Fatalf("CreateIncoming failed: %v", err)
	}
	if _, err := CreateOutgoing("+1234567890", "hello", "key-1"); err != nil {
		t.Fatalf("CreateOutgoing failed: %v", err)
	}

	messages, err := ListMessages(MessageFilters{ApiKeyID: "key-2", Direction: DirectionIncoming, Limit: 50})
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Expected 1 incoming message visible to an unrelated key, got %d", len(messages))
	}
	if messages[0].Direction != DirectionIncoming {
		t.Errorf("Expected incoming message, got direction %q", messages[0].Direction)
	}
}

func TestGetMessageForOwner_RejectsIncoming(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()

	msg, err := CreateIncoming("+1234567890", "hi", 1, map[string]any{})
	if err != nil {
		t.Fatalf("CreateIncoming failed: %v", err)
	}

	got, err := GetMessageForOwner(msg.ID, "key-1")
	if err != nil {
		t.Fatalf("GetMessageForOwner failed: %v", err)
	}
	if got != nil {
		t.Error("Expected incoming messages to never be owner-scoped to an api key")
	}
}
