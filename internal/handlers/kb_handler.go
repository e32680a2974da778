package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/supportsphere/escalation-engine/internal/core/ingest"
	"github.com/supportsphere/escalation-engine/internal/core/kb"
	"github.com/supportsphere/escalation-engine/internal/core/vector"
	"github.com/supportsphere/escalation-engine/internal/services"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

// KBHandler manages knowledge base content: FAQ entries, document ingestion,
// and a retrieval debug endpoint
type KBHandler struct {
	kbService *services.KBService
}

func NewKBHandler(kbService *services.KBService) *KBHandler {
	return &KBHandler{kbService: kbService}
}

// CreateFaq handles POST /owners/:owner_id/faqs
func (h *KBHandler) CreateFaq(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid owner_id",
		})
	}

	var req services.FaqInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "question and answer are required",
		})
	}

	faq, err := h.kbService.CreateFaq(c.UserContext(), ownerID, req)
	if err != nil {
		return providerError(c, err, "failed to create faq")
	}

	return c.Status(fiber.StatusCreated).JSON(faq)
}

// UpdateFaq handles PUT /faqs/:id
func (h *KBHandler) UpdateFaq(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid faq id",
		})
	}

	var req services.FaqInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "question and answer are required",
		})
	}

	faq, err := h.kbService.UpdateFaq(c.UserContext(), id, req)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "faq not found",
			})
		}
		return providerError(c, err, "failed to update faq")
	}

	return c.JSON(faq)
}

// DeleteFaq handles DELETE /faqs/:id
func (h *KBHandler) DeleteFaq(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid faq id",
		})
	}

	if err := h.kbService.DeleteFaq(c.UserContext(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete faq",
		})
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// ListFaqs handles GET /owners/:owner_id/faqs
func (h *KBHandler) ListFaqs(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid owner_id",
		})
	}

	faqs, err := h.kbService.ListFaqs(c.UserContext(), ownerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch faqs",
		})
	}
	return c.JSON(faqs)
}

// IngestDocument handles POST /owners/:owner_id/documents
func (h *KBHandler) IngestDocument(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid owner_id",
		})
	}

	var req services.DocumentInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
		})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title is required",
		})
	}

	doc, chunks, err := h.kbService.IngestDocument(c.UserContext(), ownerID, req)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyText) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "text is required",
			})
		}
		return providerError(c, err, "failed to ingest document")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"document": doc,
		"chunks":   len(chunks),
	})
}

// ListDocuments handles GET /owners/:owner_id/documents
func (h *KBHandler) ListDocuments(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid owner_id",
		})
	}

	docs, err := h.kbService.ListDocuments(c.UserContext(), ownerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch documents",
		})
	}
	return c.JSON(docs)
}

// Retrieve handles GET /owners/:owner_id/retrieve?q=...&top_k=N, exposing
// ranked retrieval for debugging rule thresholds
func (h *KBHandler) Retrieve(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid owner_id",
		})
	}

	query := c.Query("q")
	topK := kb.DefaultTopK
	if raw := c.Query("top_k"); raw != "" {
		topK, err = strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid top_k",
			})
		}
	}

	results, err := h.kbService.Retrieve(c.UserContext(), ownerID, query, topK)
	if err != nil {
		switch {
		case errors.Is(err, kb.ErrInvalidTopK), errors.Is(err, kb.ErrEmptyQuery):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			return providerError(c, err, "retrieval failed")
		}
	}

	return c.JSON(fiber.Map{
		"query":   query,
		"results": results,
	})
}

// providerError maps embedding and vector store failures to 503 so callers
// can distinguish transient backend trouble from bad requests
func providerError(c *fiber.Ctx, err error, fallback string) error {
	if errors.Is(err, vector.ErrProviderTimeout) || errors.Is(err, vector.ErrProviderUnavailable) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "embedding provider unavailable",
		})
	}
	utils.LogError(fallback, err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fallback,
	})
}
