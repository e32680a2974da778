package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/supportsphere/escalation-engine/internal/core/jobs"
	"github.com/supportsphere/escalation-engine/internal/core/llm"
	"github.com/supportsphere/escalation-engine/internal/models"
	"github.com/supportsphere/escalation-engine/internal/repositories"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

// ChatSummaryHandler summarizes an escalation's chat history in the
// background so agents see a digest instead of the raw transcript
type ChatSummaryHandler struct {
	escalations repositories.EscalationRepo
	summarizer  *llm.Summarizer
}

func NewChatSummaryHandler(escalations repositories.EscalationRepo, summarizer *llm.Summarizer) *ChatSummaryHandler {
	return &ChatSummaryHandler{
		escalations: escalations,
		summarizer:  summarizer,
	}
}

func (h *ChatSummaryHandler) GetType() string {
	return jobs.TypeChatSummary
}

func (h *ChatSummaryHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload struct {
		EscalationID string `json:"escalation_id"`
	}
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid chat summary payload: %w", err)
	}
	escalationID, err := uuid.Parse(payload.EscalationID)
	if err != nil {
		return fmt.Errorf("invalid escalation id %q: %w", payload.EscalationID, err)
	}

	esc, err := h.escalations.GetByID(ctx, escalationID)
	if err != nil {
		return err
	}

	var turns []models.ChatTurn
	if len(esc.ChatHistory) > 0 {
		if err := json.Unmarshal(esc.ChatHistory, &turns); err != nil {
			return fmt.Errorf("malformed chat history on escalation %s: %w", esc.ID, err)
		}
	}
	if len(turns) == 0 {
		utils.LogWarn("escalation has no chat history to summarize", map[string]interface{}{
			"escalation_id": esc.ID.String(),
		})
		return nil
	}

	summary, err := h.summarizer.Summarize(ctx, turns)
	if err != nil {
		return fmt.Errorf("failed to summarize escalation %s: %w", esc.ID, err)
	}

	esc.ChatSummary = summary
	if err := h.escalations.Update(ctx, esc); err != nil {
		return err
	}

	utils.LogInfo("escalation summarized", map[string]interface{}{
		"escalation_id": esc.ID.String(),
		"turns":         len(turns),
	})
	return nil
}
