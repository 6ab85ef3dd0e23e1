// Package message implements the Message domain service, wrapping
// db's repository with the state-machine operations and the
// enqueue-at-creation wiring between a new outgoing message and its
// sms_send job.
package message

import (
	"sms-gateway-api/db"
)

// CreateOutgoing persists a pending Message for apiKeyID and enqueues
// the corresponding sms_send job.
func CreateOutgoing(phone, content, apiKeyID string) (*db.Message, error) {
	msg, err := db.CreateOutgoing(phone, content, apiKeyID)
	if err != nil {
		return nil, err
	}

	if _, err := db.EnqueueJob(db.QueueSMSSend, msg.ID, 3); err != nil {
		// The message row exists but nothing will ever pick it up; surface
		// the error so the caller can report a 503 rather than silently
		// stranding it in pending.
		return nil, err
	}

	return msg, nil
}

// Get returns a Message scoped to apiKeyID, or nil if absent or owned
// by a different key.
func Get(id, apiKeyID string) (*db.Message, error) {
	return db.GetMessageForOwner(id, apiKeyID)
}

// List returns apiKeyID's outgoing messages plus all incoming messages
// with the given filters, defaulting limit=50/offset=0.
func List(apiKeyID string, filters db.MessageFilters) ([]db.Message, error) {
	filters.ApiKeyID = apiKeyID
	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	return db.ListMessages(filters)
}
