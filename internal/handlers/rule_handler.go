package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportsphere/escalation-engine/internal/models"
	"github.com/supportsphere/escalation-engine/internal/repositories"
)

// RuleHandler manages threshold rules
type RuleHandler struct {
	ruleRepo repositories.RuleRepo
}

func NewRuleHandler(ruleRepo repositories.RuleRepo) *RuleHandler {
	return &RuleHandler{ruleRepo: ruleRepo}
}

// RuleRequest represents the writable fields of a threshold rule
type RuleRequest struct {
	RuleName            string  `json:"rule_name"`
	TriggerType         string  `json:"trigger_type"`
	Keyword             string  `json:"keyword"`
	Action              string  `json:"action"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	IsActive            *bool   `json:"is_active"`
}

func (r *RuleRequest) validate() string {
	if strings.TrimSpace(r.RuleName) == "" {
		return "rule_name is required"
	}
	switch models.RuleTriggerType(r.TriggerType) {
	case models.TriggerKeyword:
		if strings.TrimSpace(r.Keyword) == "" {
			return "keyword is required for keyword rules"
		}
		if strings.TrimSpace(r.Action) == "" {
			return "action is required for keyword rules"
		}
	case models.TriggerSimilarity:
		if r.ConfidenceThreshold < -1 || r.ConfidenceThreshold > 1 {
			return "confidence_threshold must be between -1 and 1"
		}
	default:
		return "trigger_type must be keyword or similarity"
	}
	return ""
}

// CreateRule handles POST /owners/:owner_id/rules
func (h *RuleHandler) CreateRule(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid owner_id",
		})
	}

	var req RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if msg := req.validate(); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msg,
		})
	}

	rule := &models.ThresholdRule{
		OwnerID:             ownerID,
		RuleName:            req.RuleName,
		TriggerType:         models.RuleTriggerType(req.TriggerType),
		Keyword:             req.Keyword,
		Action:              req.Action,
		ConfidenceThreshold: req.ConfidenceThreshold,
		IsActive:            true,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if rule.TriggerType == models.TriggerSimilarity && rule.ConfidenceThreshold == 0 {
		rule.ConfidenceThreshold = 0.5
	}

	if err := h.ruleRepo.Create(c.UserContext(), rule); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create rule",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

// UpdateRule handles PUT /rules/:id
func (h *RuleHandler) UpdateRule(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid rule id",
		})
	}

	var req RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if msg := req.validate(); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": msg,
		})
	}

	rule, err := h.ruleRepo.GetByID(c.UserContext(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "rule not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch rule",
		})
	}

	rule.RuleName = req.RuleName
	rule.TriggerType = models.RuleTriggerType(req.TriggerType)
	rule.Keyword = req.Keyword
	rule.Action = req.Action
	rule.ConfidenceThreshold = req.ConfidenceThreshold
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.ruleRepo.Update(c.UserContext(), rule); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update rule",
		})
	}
	return c.JSON(rule)
}

// ListRules handles GET /owners/:owner_id/rules
func (h *RuleHandler) ListRules(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid owner_id",
		})
	}

	rules, err := h.ruleRepo.ListByOwner(c.UserContext(), ownerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch rules",
		})
	}
	return c.JSON(rules)
}

// DeleteRule handles DELETE /rules/:id
func (h *RuleHandler) DeleteRule(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid rule id",
		})
	}

	if err := h.ruleRepo.Delete(c.UserContext(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete rule",
		})
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}
