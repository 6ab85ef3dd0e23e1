package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MessageFilters scopes a message listing.
type MessageFilters struct {
	ApiKeyID  string
	Direction string
	Status    string
	Phone     string
	Limit     int
	Offset    int
}

const maxContentLength = 160
const maxPhoneLength = 20

// ErrContentTooLong is returned when content exceeds the single-segment
// budget.
var ErrContentTooLong = fmt.Errorf("content exceeds %d characters", maxContentLength)

// ErrPhoneTooLong is returned when the phone number exceeds the field budget.
var ErrPhoneTooLong = fmt.Errorf("phone number exceeds %d characters", maxPhoneLength)

// ErrInvalidTransition is returned when a status transition violates the
// state machine's invariants — there are no backward moves.
var ErrInvalidTransition = fmt.Errorf("invalid message status transition")

// CreateOutgoing inserts a Message in status=pending for the given
// apiKeyID. The caller (message.CreateOutgoing) is responsible for
// enqueuing the sms_send job in the same logical operation.
func CreateOutgoing(phone, content, apiKeyID string) (*Message, error) {
	if utf8.RuneCountInString(content) > maxContentLength {
		return nil, ErrContentTooLong
	}
	if utf8.RuneCountInString(phone) > maxPhoneLength {
		return nil, ErrPhoneTooLong
	}

	now := time.Now().UTC()
	msg := &Message{
		ID:          uuid.New().String(),
		Direction:   DirectionOutgoing,
		PhoneNumber: phone,
		Content:     content,
		Status:      StatusPending,
		ApiKeyID:    &apiKeyID,
		Metadata:    "{}",
		InsertedAt:  now,
		UpdatedAt:   now,
	}

	_, err := DB.Exec(
		`INSERT INTO messages (id, direction, phone_number, content, status, api_key_id, metadata, inserted_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.Direction, msg.PhoneNumber, msg.Content, msg.Status, msg.ApiKeyID, msg.Metadata, msg.InsertedAt, msg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outgoing message: %w", err)
	}

	return msg, nil
}

// CreateIncoming inserts a Message directly in status=received;
// incoming messages always carry a null apiKeyId.
func CreateIncoming(phone, content string, modemInboxIndex int, metadata map[string]any) (*Message, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	now := time.Now().UTC()
	msg := &Message{
		ID:              uuid.New().String(),
		Direction:       DirectionIncoming,
		PhoneNumber:     phone,
		Content:         content,
		Status:          StatusReceived,
		ReceivedAt:      &now,
		Metadata:        string(metaJSON),
		ModemInboxIndex: &modemInboxIndex,
		InsertedAt:      now,
		UpdatedAt:       now,
	}

	_, err = DB.Exec(
		`INSERT INTO messages (id, direction, phone_number, content, status, received_at, metadata, modem_inbox_index, inserted_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		msg.ID, msg.Direction, msg.PhoneNumber, msg.Content, msg.Status, msg.ReceivedAt, msg.Metadata, msg.ModemInboxIndex, msg.InsertedAt, msg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create incoming message: %w", err)
	}

	return msg, nil
}

// GetMessage loads a Message by id, unscoped.
func GetMessage(id string) (*Message, error) {
	row := DB.QueryRow(
		`SELECT id, direction, phone_number, content, status, modem_message_id, error_message,
		        api_key_id, sent_at, delivered_at, received_at, metadata, modem_inbox_index, inserted_at, updated_at
		 FROM messages WHERE id = $1`,
		id,
	)
	return scanMessage(row)
}

func scanMessage(row *sql.Row) (*Message, error) {
	m := &Message{}
	err := row.Scan(
		&m.ID, &m.Direction, &m.PhoneNumber, &m.Content, &m.Status, &m.ModemMessageID, &m.ErrorMessage,
		&m.ApiKeyID, &m.SentAt, &m.DeliveredAt, &m.ReceivedAt, &m.Metadata, &m.ModemInboxIndex, &m.InsertedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	return m, nil
}

// MarkSending transitions pending|queued -> sending. Two concurrent
// workers cannot both win this race: the WHERE clause rejects the
// update if the message has moved on already.
func MarkSending(id string) error {
	res, err := DB.Exec(
		`UPDATE messages SET status = $1, updated_at = $2
		 WHERE id = $3 AND status IN ($4, $5)`,
		StatusSending, time.Now().UTC(), id, StatusPending, StatusQueued,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message sending: %w", err)
	}
	return requireRowsAffected(res)
}

// MarkSent transitions sending -> sent, setting sentAt and the modem's
// message id. sentAt is immutable thereafter.
func MarkSent(id, modemMessageID string) error {
	now := time.Now().UTC()
	res, err := DB.Exec(
		`UPDATE messages SET status = $1, sent_at = $2, modem_message_id = $3, updated_at = $4
		 WHERE id = $5 AND status = $6`,
		StatusSent, now, modemMessageID, now, id, StatusSending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	return requireRowsAffected(res)
}

// MarkDelivered transitions sent -> delivered; deliveredAt is set only
// at this transition.
func MarkDelivered(id string) error {
	now := time.Now().UTC()
	res, err := DB.Exec(
		`UPDATE messages SET status = $1, delivered_at = $2, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		StatusDelivered, now, now, id, StatusSent,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}
	return requireRowsAffected(res)
}

// MarkFailed transitions queued|sending|sent -> failed, terminal. Used
// both by the dispatcher on non-retryable exhaustion and by the
// reconciler when the modem reports a failed delivery.
func MarkFailed(id, reason string) error {
	res, err := DB.Exec(
		`UPDATE messages SET status = $1, error_message = $2, updated_at = $3
		 WHERE id = $4 AND status IN ($5, $6, $7)`,
		StatusFailed, reason, time.Now().UTC(), id, StatusQueued, StatusSending, StatusSent,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return requireRowsAffected(res)
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ListMessages always includes incoming messages (they have no owner to
// scope by) and otherwise scopes results to filters.ApiKeyID, sorted
// insertedAt desc.
func ListMessages(filters MessageFilters) ([]Message, error) {
	query := `SELECT id, direction, phone_number, content, status, modem_message_id, error_message,
	                 api_key_id, sent_at, delivered_at, received_at, metadata, modem_inbox_index, inserted_at, updated_at
	          FROM messages WHERE (direction = $1 OR api_key_id = $2)`
	args := []interface{}{DirectionIncoming, filters.ApiKeyID}
	argN := 3

	if filters.Direction != "" {
		query += fmt.Sprintf(" AND direction = $%d", argN)
		args = append(args, filters.Direction)
		argN++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, filters.Status)
		argN++
	}
	if filters.Phone != "" {
		query += fmt.Sprintf(" AND phone_number = $%d", argN)
		args = append(args, filters.Phone)
		argN++
	}

	query += " ORDER BY inserted_at DESC"

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", argN)
	args = append(args, limit)
	argN++

	query += fmt.Sprintf(" OFFSET $%d", argN)
	args = append(args, filters.Offset)

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m := Message{}
		if err := rows.Scan(
			&m.ID, &m.Direction, &m.PhoneNumber, &m.Content, &m.Status, &m.ModemMessageID, &m.ErrorMessage,
			&m.ApiKeyID, &m.SentAt, &m.DeliveredAt, &m.ReceivedAt, &m.Metadata, &m.ModemInboxIndex, &m.InsertedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// GetMessageForOwner returns nil (not 404-worthy at this layer) if the
// message is absent or not owned by apiKeyID.
func GetMessageForOwner(id, apiKeyID string) (*Message, error) {
	m, err := GetMessage(id)
	if err != nil || m == nil {
		return nil, err
	}
	if m.Direction != DirectionOutgoing || m.ApiKeyID == nil || *m.ApiKeyID != apiKeyID {
		return nil, nil
	}
	return m, nil
}

// PendingReconciliation returns sent-but-not-final messages ready for a
// status lookup: sentAt older than the given age.
func PendingReconciliation(olderThan time.Duration) ([]Message, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := DB.Query(
		`SELECT id, direction, phone_number, content, status, modem_message_id, error_message,
		        api_key_id, sent_at, delivered_at, received_at, metadata, modem_inbox_index, inserted_at, updated_at
		 FROM messages
		 WHERE status = $1 AND modem_message_id IS NOT NULL AND sent_at < $2`,
		StatusSent, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation candidates: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m := Message{}
		if err := rows.Scan(
			&m.ID, &m.Direction, &m.PhoneNumber, &m.Content, &m.Status, &m.ModemMessageID, &m.ErrorMessage,
			&m.ApiKeyID, &m.SentAt, &m.DeliveredAt, &m.ReceivedAt, &m.Metadata, &m.ModemInboxIndex, &m.InsertedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation candidate: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
