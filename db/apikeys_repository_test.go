package db

import "testing"

func TestApiKeyLifecycle(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()

	limit := 10
	key, err := CreateApiKey("key-1", "test key", "hash", "prefix", &limit)
	if err != nil {
		t.Fatalf("CreateApiKey failed: %v", err)
	}
	if !key.IsActive {
		t.Error("Expected a freshly created key to be active")
	}

	found, err := GetApiKey("key-1")
	if err != nil || found == nil {
		t.Fatalf("GetApiKey failed: %v, found=%v", err, found)
	}

	matches, err := ActiveApiKeysByPrefix("prefix")
	if err != nil {
		t.Fatalf("ActiveApiKeysByPrefix failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 active key with prefix, got %d", len(matches))
	}

	if err := DeactivateApiKey("key-1"); err != nil {
		t.Fatalf("DeactivateApiKey failed: %v", err)
	}
	matches, err = ActiveApiKeysByPrefix("prefix")
	if err != nil {
		t.Fatalf("ActiveApiKeysByPrefix failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected 0 active keys after deactivation, got %d", len(matches))
	}
}

func TestDeleteApiKey_NullsMessageFK(t *testing.T) {
	setupMessagesTestDB(t)
	defer Close()

	if _, err := CreateApiKey("key-1", "test key", "hash", "prefix", nil); err != nil {
		t.Fatalf("CreateApiKey failed: %v", err)
	}
	msg, err := CreateOutgoing("+1234567890", "hello", "key-1")
	if err != nil {
		t.Fatalf("CreateOutgoing failed: %v", err)
	}

	if err := DeleteApiKey("key-1"); err != nil {
		t.Fatalf("DeleteApiKey failed: %v", err)
	}

	got, err := GetMessage(msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.ApiKeyID != nil {
		t.Errorf("Expected api_key_id to be nulled after key deletion, got %v", *got.ApiKeyID)
	}
}
