package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"sms-gateway-api/db"
	"sms-gateway-api/message"
)

func toMessageResponse(m db.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		Direction:      m.Direction,
		Phone:          m.PhoneNumber,
		Content:        m.Content,
		Status:         m.Status,
		ModemMessageID: m.ModemMessageID,
		ErrorMessage:   m.ErrorMessage,
		SentAt:         m.SentAt,
		DeliveredAt:    m.DeliveredAt,
		ReceivedAt:     m.ReceivedAt,
		InsertedAt:     m.InsertedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// QueueSMSHandler implements POST /api/v1/messages: validates the
// request, persists a pending Message scoped to the caller's api key,
// and enqueues the sms_send job in the same call.
func QueueSMSHandler(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return ReturnBadRequest(c, "Invalid request body")
	}
	if req.Phone == "" {
		return ReturnBadRequest(c, "phone is required")
	}
	if req.Content == "" {
		return ReturnBadRequest(c, "content is required")
	}

	key := apiKeyFromCtx(c)
	msg, err := message.CreateOutgoing(req.Phone, req.Content, key.ID)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrContentTooLong), errors.Is(err, db.ErrPhoneTooLong):
			return ReturnBadRequest(c, err.Error())
		default:
			return ReturnServiceUnavailable(c, "Failed to queue message")
		}
	}

	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(*msg))
}

// ListMessagesHandler implements GET /api/v1/messages: filters by
// direction/status/phone over the caller's outgoing messages plus all
// incoming messages.
func ListMessagesHandler(c *fiber.Ctx) error {
	filters := db.MessageFilters{
		Direction: c.Query("direction"),
		Status:    c.Query("status"),
		Phone:     c.Query("phone"),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}
	if filters.Limit > 100 {
		filters.Limit = 100
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	key := apiKeyFromCtx(c)
	messages, err := message.List(key.ID, filters)
	if err != nil {
		return ReturnInternalError(c, "Failed to retrieve messages")
	}

	data := make([]MessageResponse, len(messages))
	for i, m := range messages {
		data[i] = toMessageResponse(m)
	}

	return c.JSON(MessagesListResponse{Data: data, Limit: filters.Limit, Offset: filters.Offset})
}

// GetMessageHandler implements GET /api/v1/messages/:id: 404 both if
// absent and if owned by a different caller, so as never to leak
// which.
func GetMessageHandler(c *fiber.Ctx) error {
	key := apiKeyFromCtx(c)
	msg, err := message.Get(c.Params("id"), key.ID)
	if err != nil {
		return ReturnInternalError(c, "Failed to retrieve message")
	}
	if msg == nil {
		return ReturnNotFound(c, "Message not found")
	}
	return c.JSON(toMessageResponse(*msg))
}
