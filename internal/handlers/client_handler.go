package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportsphere/escalation-engine/internal/repositories"
)

// ClientHandler exposes client lookup and agent assignment
type ClientHandler struct {
	clientRepo repositories.ClientRepo
	ticketRepo repositories.TicketRepo
}

func NewClientHandler(clientRepo repositories.ClientRepo, ticketRepo repositories.TicketRepo) *ClientHandler {
	return &ClientHandler{
		clientRepo: clientRepo,
		ticketRepo: ticketRepo,
	}
}

// GetClient handles GET /clients/:id
func (h *ClientHandler) GetClient(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid client id",
		})
	}

	client, err := h.clientRepo.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "client not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch client",
		})
	}
	return c.JSON(client)
}

// ListTickets handles GET /clients/:id/tickets
func (h *ClientHandler) ListTickets(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid client id",
		})
	}

	tickets, err := h.ticketRepo.ListByClient(c.UserContext(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch tickets",
		})
	}
	return c.JSON(tickets)
}

// AssignAgent handles POST /clients/:id/agent. Only one assignment per
// client is active at a time.
func (h *ClientHandler) AssignAgent(c *fiber.Ctx) error {
	clientID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid client id",
		})
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid user_id",
		})
	}

	if err := h.clientRepo.AssignAgent(c.UserContext(), clientID, userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to assign agent",
		})
	}
	return c.JSON(fiber.Map{"status": "assigned"})
}
