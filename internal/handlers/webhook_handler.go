package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/supportsphere/escalation-engine/internal/core/conversation"
	"github.com/supportsphere/escalation-engine/internal/core/gateway"
	"github.com/supportsphere/escalation-engine/internal/core/kb"
	"github.com/supportsphere/escalation-engine/internal/services"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

// WebhookHandler receives message delivery events from the messaging gateway
type WebhookHandler struct {
	messageService *services.MessageService
}

func NewWebhookHandler(messageService *services.MessageService) *WebhookHandler {
	return &WebhookHandler{messageService: messageService}
}

// GatewayWebhookPayload represents an incoming gateway delivery event
type GatewayWebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		ID        string `json:"id"`
		Timestamp int64  `json:"timestamp"`
		From      string `json:"from"`
		FromMe    bool   `json:"fromMe"`
		Body      string `json:"body"`
	} `json:"payload"`
}

// inbound converts the gateway event into the inbound message shape the
// message service consumes. Timestamp stays in unix seconds.
func (p GatewayWebhookPayload) inbound() gateway.InboundMessage {
	return gateway.InboundMessage{
		PhoneNumber: p.Payload.From,
		Text:        p.Payload.Body,
		MessageUUID: p.Payload.ID,
		Timestamp:   p.Payload.Timestamp,
	}
}

// ReceiveWebhook handles POST /webhook/:owner_id. A redelivered message UUID
// returns the originally applied outcome without reprocessing.
func (h *WebhookHandler) ReceiveWebhook(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid owner_id",
		})
	}

	var payload GatewayWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid payload",
		})
	}

	// Only process inbound text messages: skip acks, reactions, session
	// events, and anything the bot itself sent
	if payload.Event != "message" ||
		payload.Payload.FromMe ||
		strings.TrimSpace(payload.Payload.Body) == "" ||
		payload.Payload.From == "" {
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	if payload.Payload.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message id is required",
		})
	}

	inbound := payload.inbound()

	outcome, err := h.messageService.HandleInbound(c.UserContext(), ownerID, inbound)
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrEmptyMessage),
			errors.Is(err, kb.ErrEmptyQuery),
			errors.Is(err, kb.ErrInvalidTopK):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			utils.LogError("failed to process inbound message", err, map[string]interface{}{
				"owner_id":     ownerID.String(),
				"message_uuid": payload.Payload.ID,
			})
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to process message",
			})
		}
	}

	status := fiber.StatusOK
	if !outcome.Duplicate {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"status":    "processed",
		"duplicate": outcome.Duplicate,
		"outcome":   outcome,
	})
}
