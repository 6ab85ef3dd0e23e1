package rest

import "time"

// SendMessageRequest is the body of POST /api/v1/messages.
type SendMessageRequest struct {
	Phone   string `json:"phone" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// MessageResponse is the JSON shape for a Message: nulls are omitted
// rather than rendered, and timestamps are ISO 8601 UTC.
type MessageResponse struct {
	ID             string     `json:"id"`
	Direction      string     `json:"direction"`
	Phone          string     `json:"phone"`
	Content        string     `json:"content"`
	Status         string     `json:"status"`
	ModemMessageID *string    `json:"modemMessageId,omitempty"`
	ErrorMessage   *string    `json:"errorMessage,omitempty"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	ReceivedAt     *time.Time `json:"receivedAt,omitempty"`
	InsertedAt     time.Time  `json:"insertedAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// MessagesListResponse wraps a page of messages.
type MessagesListResponse struct {
	Data   []MessageResponse `json:"data"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}
