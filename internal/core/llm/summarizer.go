package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/supportsphere/escalation-engine/internal/models"
)

const summarySystemPrompt = `You are a support assistant. Summarize the customer conversation below in 2-3 sentences for the human agent taking over. State what the customer needs and anything already tried. Reply with the summary only.`

// Summarizer condenses an escalated conversation into a short handover note
type Summarizer struct {
	provider Provider
}

func NewSummarizer(provider Provider) *Summarizer {
	return &Summarizer{provider: provider}
}

// Summarize produces a handover summary from the escalation's chat turns
func (s *Summarizer) Summarize(ctx context.Context, turns []models.ChatTurn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("no chat turns to summarize")
	}

	var sb strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&sb, "[%s] %s\n", turn.Sender, turn.Text)
	}

	return s.provider.GenerateResponse(ctx, summarySystemPrompt, sb.String())
}

// GetProviderName returns the backing provider's name
func (s *Summarizer) GetProviderName() string {
	return s.provider.GetProviderName()
}
