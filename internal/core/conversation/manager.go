package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/supportsphere/escalation-engine/internal/core/kb"
	"github.com/supportsphere/escalation-engine/internal/core/rules"
	"github.com/supportsphere/escalation-engine/internal/models"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

// Actions recognized on keyword rules. Any other action string is treated as
// a canned reply sent back to the client.
const (
	ActionClose    = "close"
	ActionEscalate = "escalate"
)

// TicketStore persists tickets and their message threads
type TicketStore interface {
	GetByID(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error)
	// GetOpenByClient returns the client's open ticket, or nil if none exists
	GetOpenByClient(ctx context.Context, clientID uuid.UUID) (*models.Ticket, error)
	// CreateWithFirstMessage atomically creates a ticket with its first message
	CreateWithFirstMessage(ctx context.Context, ticket *models.Ticket, msg *models.Message) error
	// AppendMessage stores a message and bumps the ticket's updated_at
	AppendMessage(ctx context.Context, msg *models.Message) error
	GetMessageByUUID(ctx context.Context, ticketID uuid.UUID, messageUUID string) (*models.Message, error)
	// GetMessageByClient resolves a message UUID across all of the client's
	// tickets, open or solved, or returns nil
	GetMessageByClient(ctx context.Context, clientID uuid.UUID, messageUUID string) (*models.Message, error)
	UpdateMessage(ctx context.Context, msg *models.Message) error
	MarkSolved(ctx context.Context, ticketID uuid.UUID) error
}

// EscalationStore persists escalation records
type EscalationStore interface {
	// GetPendingByClient returns the client's pending escalation, or nil
	GetPendingByClient(ctx context.Context, clientID uuid.UUID) (*models.Escalation, error)
	Create(ctx context.Context, esc *models.Escalation) error
	Update(ctx context.Context, esc *models.Escalation) error
	ResolveByTicket(ctx context.Context, ticketID uuid.UUID) error
}

// Decider maps an inbound text to a decision. Implemented by the message
// service as retrieval plus rule evaluation.
type Decider interface {
	Decide(ctx context.Context, ownerID uuid.UUID, text string) (rules.Decision, error)
}

// Gateway delivers outbound replies to the client channel
type Gateway interface {
	Send(ctx context.Context, phoneNumber, text string) error
}

// SummaryEnqueuer schedules async chat summarization for an escalation
type SummaryEnqueuer interface {
	EnqueueSummary(ctx context.Context, ownerID, escalationID uuid.UUID) error
}

// Outcome is what HandleInboundMessage applied (or previously applied, for a
// redelivered message UUID)
type Outcome struct {
	Decision     rules.Decision `json:"decision"`
	TicketID     uuid.UUID      `json:"ticket_id"`
	EscalationID *uuid.UUID     `json:"escalation_id,omitempty"`
	Reply        string         `json:"reply,omitempty"`
	Duplicate    bool           `json:"-"`
}

// HandoffReply is sent to the client when their conversation escalates
const HandoffReply = "Thanks for reaching out! I'm connecting you with one of our support agents, they'll get back to you shortly."

// Manager owns the message thread, ticket lifecycle and escalation record
// for each client interaction. Work is serialized per client via a keyed
// mutex; distinct clients proceed fully in parallel.
type Manager struct {
	tickets     TicketStore
	escalations EscalationStore
	decider     Decider
	gateway     Gateway
	summaries   SummaryEnqueuer
	locks       *keyedMutex
}

// NewManager creates a conversation manager. summaries may be nil when async
// summarization is not wired.
func NewManager(tickets TicketStore, escalations EscalationStore, decider Decider, gateway Gateway, summaries SummaryEnqueuer) *Manager {
	return &Manager{
		tickets:     tickets,
		escalations: escalations,
		decider:     decider,
		gateway:     gateway,
		summaries:   summaries,
		locks:       newKeyedMutex(),
	}
}

// HandleInboundMessage processes one client message end to end: dedup by
// message UUID, ticket creation, decision, reply or escalation. Redelivery
// of an already-recorded UUID is a no-op returning the recorded outcome.
func (m *Manager) HandleInboundMessage(ctx context.Context, client *models.Client, text, messageUUID string) (*Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if messageUUID == "" {
		messageUUID = uuid.New().String()
	}

	m.locks.Lock(client.ID)
	defer m.locks.Unlock(client.ID)

	// Once the critical section is entered it runs to completion; caller
	// cancellation must not leave partial state behind.
	mctx := context.WithoutCancel(ctx)

	// Dedup spans the client's whole history: a redelivery after the ticket
	// closed must still replay the recorded outcome, not reopen a thread.
	prev, err := m.tickets.GetMessageByClient(mctx, client.ID, messageUUID)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if prev != nil {
		return recordedOutcome(prev, prev.TicketID)
	}

	ticket, err := m.tickets.GetOpenByClient(mctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup open ticket: %w", err)
	}

	// Decision runs on the caller's context: a cancelled retrieval aborts
	// before any state is written.
	decision, err := m.decide(ctx, client.OwnerID, text)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Decision: decision}

	inbound := &models.Message{
		MessageUUID: messageUUID,
		Sender:      models.SenderClient,
		Content:     text,
	}

	if ticket == nil {
		ticket = &models.Ticket{
			OwnerID:  client.OwnerID,
			ClientID: client.ID,
			Status:   models.TicketStatusOpen,
		}
		inbound.Outcome = encodeOutcome(outcome)
		if err := m.tickets.CreateWithFirstMessage(mctx, ticket, inbound); err != nil {
			return nil, fmt.Errorf("create ticket: %w", err)
		}
	} else {
		inbound.TicketID = ticket.ID
		inbound.Outcome = encodeOutcome(outcome)
		if err := m.tickets.AppendMessage(mctx, inbound); err != nil {
			if isDuplicateErr(err) {
				// Lost a race despite the lock: the first writer wins.
				prev, lookupErr := m.tickets.GetMessageByUUID(mctx, ticket.ID, messageUUID)
				if lookupErr == nil && prev != nil {
					return recordedOutcome(prev, ticket.ID)
				}
				return nil, fmt.Errorf("%w: %v", ErrDuplicateDelivery, err)
			}
			return nil, fmt.Errorf("append message: %w", err)
		}
	}
	outcome.TicketID = ticket.ID

	if err := m.applyDecision(mctx, client, ticket, text, outcome); err != nil {
		return nil, err
	}

	// Re-record the outcome now that reply/escalation details are known
	inbound.Outcome = encodeOutcome(outcome)
	if err := m.tickets.UpdateMessage(mctx, inbound); err != nil {
		utils.LogWarn("failed to record message outcome", map[string]interface{}{
			"message_uuid": messageUUID,
			"error":        err.Error(),
		})
	}

	return outcome, nil
}

// decide calls the decider, falling back to escalation on transient failures.
// Malformed input is rejected instead of escalated.
func (m *Manager) decide(ctx context.Context, ownerID uuid.UUID, text string) (rules.Decision, error) {
	decision, err := m.decider.Decide(ctx, ownerID, text)
	if err == nil {
		return decision, nil
	}

	if errors.Is(err, kb.ErrInvalidTopK) || errors.Is(err, kb.ErrEmptyQuery) {
		return rules.Decision{}, err
	}

	// When in doubt, hand off to a human rather than fail the interaction
	utils.LogWarn("decision unavailable, escalating", map[string]interface{}{
		"owner_id": ownerID.String(),
		"error":    err.Error(),
	})
	return rules.Decision{
		Kind:   rules.DecisionEscalate,
		Reason: "automated answering unavailable",
	}, nil
}

func (m *Manager) applyDecision(ctx context.Context, client *models.Client, ticket *models.Ticket, text string, outcome *Outcome) error {
	switch outcome.Decision.Kind {
	case rules.DecisionAutoreply:
		return m.reply(ctx, client, ticket, outcome, outcome.Decision.Answer)

	case rules.DecisionApplyAction:
		switch outcome.Decision.Action {
		case ActionClose:
			if err := m.resolveLocked(ctx, ticket.ID); err != nil {
				return err
			}
			return m.reply(ctx, client, ticket, outcome, "This conversation has been closed. Message us again any time!")
		case ActionEscalate:
			return m.escalate(ctx, client, ticket, text, outcome)
		default:
			// The action payload itself is the canned reply
			return m.reply(ctx, client, ticket, outcome, outcome.Decision.Action)
		}

	case rules.DecisionEscalate:
		return m.escalate(ctx, client, ticket, text, outcome)

	default:
		return fmt.Errorf("unknown decision kind %q", outcome.Decision.Kind)
	}
}

// reply sends text to the client and records it as a bot message
func (m *Manager) reply(ctx context.Context, client *models.Client, ticket *models.Ticket, outcome *Outcome, text string) error {
	if err := m.gateway.Send(ctx, client.PhoneNumber, text); err != nil {
		utils.LogError("failed to deliver reply", err, map[string]interface{}{
			"client_id": client.ID.String(),
		})
	}

	botMsg := &models.Message{
		TicketID:    ticket.ID,
		MessageUUID: uuid.New().String(),
		Sender:      models.SenderBot,
		Content:     text,
	}
	if err := m.tickets.AppendMessage(ctx, botMsg); err != nil {
		return fmt.Errorf("record bot reply: %w", err)
	}

	outcome.Reply = text
	return nil
}

// escalate creates the client's pending escalation or appends to the
// existing one. At most one pending escalation exists per client.
func (m *Manager) escalate(ctx context.Context, client *models.Client, ticket *models.Ticket, text string, outcome *Outcome) error {
	turn := models.ChatTurn{
		Sender:    string(models.SenderClient),
		Text:      text,
		Timestamp: time.Now().UTC(),
	}

	esc, err := m.escalations.GetPendingByClient(ctx, client.ID)
	if err != nil {
		return fmt.Errorf("lookup pending escalation: %w", err)
	}

	if esc != nil {
		esc.ChatHistory = appendHistory(esc.ChatHistory, turn)
		if err := m.escalations.Update(ctx, esc); err != nil {
			return fmt.Errorf("update escalation: %w", err)
		}
		outcome.EscalationID = &esc.ID
		return nil
	}

	esc = &models.Escalation{
		OwnerID:     client.OwnerID,
		ClientID:    client.ID,
		TicketID:    ticket.ID,
		Status:      models.EscalationPending,
		Reason:      outcome.Decision.Reason,
		ChatHistory: appendHistory(nil, turn),
	}
	if err := m.escalations.Create(ctx, esc); err != nil {
		return fmt.Errorf("create escalation: %w", err)
	}
	outcome.EscalationID = &esc.ID

	if m.summaries != nil {
		if err := m.summaries.EnqueueSummary(ctx, client.OwnerID, esc.ID); err != nil {
			utils.LogWarn("failed to enqueue chat summary", map[string]interface{}{
				"escalation_id": esc.ID.String(),
				"error":         err.Error(),
			})
		}
	}

	return m.reply(ctx, client, ticket, outcome, HandoffReply)
}

// ResolveTicket transitions a ticket open → solved and cascades the client's
// pending escalation to resolved. Solved is terminal.
func (m *Manager) ResolveTicket(ctx context.Context, ticketID uuid.UUID) error {
	ticket, err := m.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return ErrTicketNotFound
	}

	m.locks.Lock(ticket.ClientID)
	defer m.locks.Unlock(ticket.ClientID)

	return m.resolveLocked(context.WithoutCancel(ctx), ticketID)
}

func (m *Manager) resolveLocked(ctx context.Context, ticketID uuid.UUID) error {
	ticket, err := m.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return ErrTicketNotFound
	}
	if ticket.Status == models.TicketStatusSolved {
		return ErrTicketSolved
	}

	if err := m.tickets.MarkSolved(ctx, ticketID); err != nil {
		return fmt.Errorf("mark solved: %w", err)
	}
	if err := m.escalations.ResolveByTicket(ctx, ticketID); err != nil {
		return fmt.Errorf("resolve escalation: %w", err)
	}

	utils.LogInfo("ticket resolved", map[string]interface{}{
		"ticket_id": ticketID.String(),
	})
	return nil
}

// EditMessage updates a message's content and flags it as edited. The row
// keeps its position in the thread.
func (m *Manager) EditMessage(ctx context.Context, ticketID uuid.UUID, messageUUID, newContent string) error {
	return m.mutateMessage(ctx, ticketID, messageUUID, func(msg *models.Message) {
		msg.Content = newContent
		msg.IsEdited = true
	})
}

// DeleteMessage tombstones a message: content is cleared, the row and its
// ordering position are retained for audit.
func (m *Manager) DeleteMessage(ctx context.Context, ticketID uuid.UUID, messageUUID string) error {
	return m.mutateMessage(ctx, ticketID, messageUUID, func(msg *models.Message) {
		msg.Content = ""
		msg.IsDeleted = true
	})
}

func (m *Manager) mutateMessage(ctx context.Context, ticketID uuid.UUID, messageUUID string, mutate func(*models.Message)) error {
	ticket, err := m.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return ErrTicketNotFound
	}

	m.locks.Lock(ticket.ClientID)
	defer m.locks.Unlock(ticket.ClientID)

	mctx := context.WithoutCancel(ctx)

	msg, err := m.tickets.GetMessageByUUID(mctx, ticketID, messageUUID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}

	mutate(msg)
	return m.tickets.UpdateMessage(mctx, msg)
}

func recordedOutcome(msg *models.Message, ticketID uuid.UUID) (*Outcome, error) {
	outcome := &Outcome{TicketID: ticketID, Duplicate: true}
	if len(msg.Outcome) > 0 {
		if err := json.Unmarshal(msg.Outcome, outcome); err != nil {
			return nil, fmt.Errorf("decode recorded outcome: %w", err)
		}
	}
	outcome.TicketID = ticketID
	outcome.Duplicate = true
	return outcome, nil
}

func encodeOutcome(outcome *Outcome) datatypes.JSON {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func appendHistory(history datatypes.JSON, turns ...models.ChatTurn) datatypes.JSON {
	var existing []models.ChatTurn
	if len(history) > 0 {
		_ = json.Unmarshal(history, &existing)
	}
	existing = append(existing, turns...)
	raw, err := json.Marshal(existing)
	if err != nil {
		return history
	}
	return datatypes.JSON(raw)
}

// isDuplicateErr detects unique-constraint violations across the supported
// database backends.
func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
