package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/supportsphere/escalation-engine/internal/core/gateway"
	"github.com/supportsphere/escalation-engine/internal/core/vector"
)

type HealthHandler struct {
	gatewayProvider gateway.Provider
	vectorProvider  vector.Provider
}

func NewHealthHandler(gatewayProvider gateway.Provider, vectorProvider vector.Provider) *HealthHandler {
	return &HealthHandler{
		gatewayProvider: gatewayProvider,
		vectorProvider:  vectorProvider,
	}
}

// GetHealth handles GET /health
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "escalation-engine",
		"gateway": h.gatewayProvider.GetProviderName(),
		"vector":  h.vectorProvider.GetProviderType(),
	})
}
