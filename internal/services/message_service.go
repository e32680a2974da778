package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/supportsphere/escalation-engine/internal/core/conversation"
	"github.com/supportsphere/escalation-engine/internal/core/gateway"
	"github.com/supportsphere/escalation-engine/internal/core/jobs"
	"github.com/supportsphere/escalation-engine/internal/core/kb"
	"github.com/supportsphere/escalation-engine/internal/core/rules"
	"github.com/supportsphere/escalation-engine/internal/repositories"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

// MessageService orchestrates inbound message processing: resolve the client
// from the channel identity, then run the conversation manager. It is the
// manager's Decider (retrieval plus rule evaluation) and SummaryEnqueuer.
type MessageService struct {
	clients   repositories.ClientRepo
	ruleRepo  repositories.RuleRepo
	retriever *kb.Retriever
	queue     *jobs.Queue
	manager   *conversation.Manager
	topK      int
}

func NewMessageService(
	clients repositories.ClientRepo,
	tickets repositories.TicketRepo,
	escalations repositories.EscalationRepo,
	ruleRepo repositories.RuleRepo,
	retriever *kb.Retriever,
	gw conversation.Gateway,
	queue *jobs.Queue,
	topK int,
) *MessageService {
	if topK <= 0 {
		topK = kb.DefaultTopK
	}
	s := &MessageService{
		clients:   clients,
		ruleRepo:  ruleRepo,
		retriever: retriever,
		queue:     queue,
		topK:      topK,
	}
	s.manager = conversation.NewManager(tickets, escalations, s, gw, s)
	return s
}

// HandleInbound processes one delivery from the messaging gateway. The client
// is registered under the owner on first contact.
func (s *MessageService) HandleInbound(ctx context.Context, ownerID uuid.UUID, inbound gateway.InboundMessage) (*conversation.Outcome, error) {
	client, err := s.clients.GetOrCreateByPhone(ctx, ownerID, inbound.PhoneNumber)
	if err != nil {
		utils.LogError("failed to resolve client", err, map[string]interface{}{
			"owner_id": ownerID.String(),
			"phone":    inbound.PhoneNumber,
		})
		return nil, err
	}

	return s.manager.HandleInboundMessage(ctx, client, inbound.Text, inbound.MessageUUID)
}

// Decide loads the owner's active rule snapshot, retrieves knowledge base
// candidates, and evaluates both against the inbound text
func (s *MessageService) Decide(ctx context.Context, ownerID uuid.UUID, text string) (rules.Decision, error) {
	activeRules, err := s.ruleRepo.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return rules.Decision{}, err
	}
	snapshot := rules.Snapshot{Rules: activeRules}

	results, err := s.retriever.Retrieve(ctx, ownerID, text, s.topK)
	if err != nil {
		return rules.Decision{}, err
	}

	return rules.Decide(snapshot, results, text), nil
}

// EnqueueSummary schedules async chat summarization for a new escalation
func (s *MessageService) EnqueueSummary(ctx context.Context, ownerID, escalationID uuid.UUID) error {
	_, err := s.queue.Enqueue(ctx, ownerID, jobs.TypeChatSummary, map[string]string{
		"escalation_id": escalationID.String(),
	}, jobs.EnqueueOptions{})
	return err
}

// ResolveTicket marks a ticket solved and cascades to its pending escalation
func (s *MessageService) ResolveTicket(ctx context.Context, ticketID uuid.UUID) error {
	return s.manager.ResolveTicket(ctx, ticketID)
}

// EditMessage replaces a stored message's content, keeping the original row
func (s *MessageService) EditMessage(ctx context.Context, ticketID uuid.UUID, messageUUID, newContent string) error {
	return s.manager.EditMessage(ctx, ticketID, messageUUID, newContent)
}

// DeleteMessage soft-deletes a stored message
func (s *MessageService) DeleteMessage(ctx context.Context, ticketID uuid.UUID, messageUUID string) error {
	return s.manager.DeleteMessage(ctx, ticketID, messageUUID)
}
