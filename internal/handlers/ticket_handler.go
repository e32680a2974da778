package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/supportsphere/escalation-engine/internal/core/conversation"
	"github.com/supportsphere/escalation-engine/internal/repositories"
	"github.com/supportsphere/escalation-engine/internal/services"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

// TicketHandler exposes ticket lifecycle operations to agents: resolving,
// message history, and message edit/delete
type TicketHandler struct {
	messageService *services.MessageService
	ticketRepo     repositories.TicketRepo
	escalationRepo repositories.EscalationRepo
}

func NewTicketHandler(messageService *services.MessageService, ticketRepo repositories.TicketRepo, escalationRepo repositories.EscalationRepo) *TicketHandler {
	return &TicketHandler{
		messageService: messageService,
		ticketRepo:     ticketRepo,
		escalationRepo: escalationRepo,
	}
}

// ResolveTicket handles POST /tickets/:id/resolve. Resolving an open ticket
// also resolves its pending escalation.
func (h *TicketHandler) ResolveTicket(c *fiber.Ctx) error {
	ticketID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid ticket id",
		})
	}

	if err := h.messageService.ResolveTicket(c.UserContext(), ticketID); err != nil {
		switch {
		case errors.Is(err, conversation.ErrTicketSolved):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "ticket is already solved",
			})
		case errors.Is(err, conversation.ErrTicketNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "ticket not found",
			})
		default:
			utils.LogError("failed to resolve ticket", err, map[string]interface{}{
				"ticket_id": ticketID.String(),
			})
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to resolve ticket",
			})
		}
	}

	return c.JSON(fiber.Map{"status": "solved"})
}

// ListMessages handles GET /tickets/:id/messages. Soft-deleted messages are
// excluded.
func (h *TicketHandler) ListMessages(c *fiber.Ctx) error {
	ticketID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid ticket id",
		})
	}

	messages, err := h.ticketRepo.ListMessages(c.UserContext(), ticketID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch messages",
		})
	}
	return c.JSON(messages)
}

// EditMessage handles PUT /tickets/:id/messages/:message_uuid
func (h *TicketHandler) EditMessage(c *fiber.Ctx) error {
	ticketID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid ticket id",
		})
	}
	messageUUID := c.Params("message_uuid")

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}

	if err := h.messageService.EditMessage(c.UserContext(), ticketID, messageUUID, req.Content); err != nil {
		return messageMutationError(c, err)
	}
	return c.JSON(fiber.Map{"status": "edited"})
}

// DeleteMessage handles DELETE /tickets/:id/messages/:message_uuid. The row
// is kept with its content cleared.
func (h *TicketHandler) DeleteMessage(c *fiber.Ctx) error {
	ticketID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid ticket id",
		})
	}
	messageUUID := c.Params("message_uuid")

	if err := h.messageService.DeleteMessage(c.UserContext(), ticketID, messageUUID); err != nil {
		return messageMutationError(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// ListPendingEscalations handles GET /owners/:owner_id/escalations
func (h *TicketHandler) ListPendingEscalations(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid owner_id",
		})
	}

	escalations, err := h.escalationRepo.ListPendingByOwner(c.UserContext(), ownerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch escalations",
		})
	}
	return c.JSON(escalations)
}

func messageMutationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, conversation.ErrMessageNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "message not found",
		})
	case errors.Is(err, conversation.ErrTicketNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "ticket not found",
		})
	default:
		utils.LogError("failed to mutate message", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update message",
		})
	}
}
