package db

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateApiKey inserts an active ApiKey row. The caller (apikey.Create)
// has already hashed the secret and computed the display prefix.
func CreateApiKey(id, name, keyHash, keyPrefix string, rateLimit *int) (*ApiKey, error) {
	now := time.Now().UTC()
	key := &ApiKey{
		ID:         id,
		Name:       name,
		KeyHash:    keyHash,
		KeyPrefix:  keyPrefix,
		IsActive:   true,
		RateLimit:  rateLimit,
		Metadata:   "{}",
		InsertedAt: now,
		UpdatedAt:  now,
	}

	_, err := DB.Exec(
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, is_active, rate_limit, metadata, inserted_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.IsActive, key.RateLimit, key.Metadata, key.InsertedAt, key.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}
	return key, nil
}

// ActiveApiKeysByPrefix finds active keys sharing a lookup prefix; the
// caller verifies the secret against each to find the
// unique match, since prefixes are not guaranteed collision-free.
func ActiveApiKeysByPrefix(prefix string) ([]ApiKey, error) {
	rows, err := DB.Query(
		`SELECT id, name, key_hash, key_prefix, is_active, rate_limit, last_used_at, metadata, inserted_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND is_active = $2`,
		prefix, true,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys by prefix: %w", err)
	}
	defer rows.Close()

	var keys []ApiKey
	for rows.Next() {
		k := ApiKey{}
		if err := rows.Scan(
			&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.IsActive, &k.RateLimit, &k.LastUsedAt, &k.Metadata, &k.InsertedAt, &k.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetApiKey loads an ApiKey by id, active or not.
func GetApiKey(id string) (*ApiKey, error) {
	row := DB.QueryRow(
		`SELECT id, name, key_hash, key_prefix, is_active, rate_limit, last_used_at, metadata, inserted_at, updated_at
		 FROM api_keys WHERE id = $1`,
		id,
	)
	k := &ApiKey{}
	err := row.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.IsActive, &k.RateLimit, &k.LastUsedAt, &k.Metadata, &k.InsertedAt, &k.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return k, nil
}

// TouchApiKeyLastUsed is a best-effort async update, safe to lose under load.
func TouchApiKeyLastUsed(id string) error {
	_, err := DB.Exec(`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch api key last used: %w", err)
	}
	return nil
}

// DeactivateApiKey flips an ApiKey to inactive without deleting its row,
// so historical messages keep a valid foreign key to reference.
func DeactivateApiKey(id string) error {
	res, err := DB.Exec(`UPDATE api_keys SET is_active = $1, updated_at = $2 WHERE id = $3`, false, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteApiKey destroys an ApiKey row; messages.api_key_id is nullified
// by the ON DELETE SET NULL foreign key, not cascaded.
func DeleteApiKey(id string) error {
	_, err := DB.Exec(`DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}
