package apikey

import (
	"testing"

	"sms-gateway-api/db"
)

func setupTestDB(t *testing.T) {
	if err := db.ConnectWithConfig(db.Config{Driver: "sqlite", Database: ":memory:"}); err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
}

func TestCreateAndVerify(t *testing.T) {
	setupTestDB(t)
	defer db.Close()

	created, err := Create("integration tests", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Secret == "" {
		t.Fatal("Expected a non-empty secret")
	}

	key, err := Verify(created.Secret)
	if err != nil {
		t.Fatalf("Verify failed for a freshly created key: %v", err)
	}
	if key.ID != created.ID {
		t.Errorf("Expected verified key id %q, got %q", created.ID, key.ID)
	}
}

func TestVerify_WrongSecretRejected(t *testing.T) {
	setupTestDB(t)
	defer db.Close()

	created, err := Create("integration tests", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := Verify(created.Secret + "x"); err != ErrInvalidKey {
		t.Errorf("Expected ErrInvalidKey for a tampered secret, got %v", err)
	}
}

func TestVerify_DeactivatedKeyRejected(t *testing.T) {
	setupTestDB(t)
	defer db.Close()

	created, err := Create("integration tests", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := db.DeactivateApiKey(created.ID); err != nil {
		t.Fatalf("Failed to deactivate key: %v", err)
	}

	if _, err := Verify(created.Secret); err != ErrInvalidKey {
		t.Errorf("Expected ErrInvalidKey for a deactivated key, got %v", err)
	}
}

func TestVerify_EmptySecretRejected(t *testing.T) {
	if _, err := Verify(""); err != ErrInvalidKey {
		t.Errorf("Expected ErrInvalidKey for an empty secret, got %v", err)
	}
}
