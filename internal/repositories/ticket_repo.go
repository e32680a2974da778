package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportsphere/escalation-engine/internal/models"
)

// TicketRepo persists tickets and their message history. It satisfies
// conversation.TicketStore.
type TicketRepo interface {
	GetByID(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error)
	GetOpenByClient(ctx context.Context, clientID uuid.UUID) (*models.Ticket, error)
	CreateWithFirstMessage(ctx context.Context, ticket *models.Ticket, msg *models.Message) error
	AppendMessage(ctx context.Context, msg *models.Message) error
	GetMessageByUUID(ctx context.Context, ticketID uuid.UUID, messageUUID string) (*models.Message, error)
	GetMessageByClient(ctx context.Context, clientID uuid.UUID, messageUUID string) (*models.Message, error)
	UpdateMessage(ctx context.Context, msg *models.Message) error
	MarkSolved(ctx context.Context, ticketID uuid.UUID) error
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Ticket, error)
	ListMessages(ctx context.Context, ticketID uuid.UUID) ([]models.Message, error)
}

type ticketRepo struct {
	db *gorm.DB
}

func NewTicketRepo(db *gorm.DB) TicketRepo {
	return &ticketRepo{db: db}
}

func (r *ticketRepo) GetByID(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).First(&ticket, "id = ?", ticketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepo) GetOpenByClient(ctx context.Context, clientID uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND status = ?", clientID, models.TicketStatusOpen).
		Order("created_at DESC").
		First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepo) CreateWithFirstMessage(ctx context.Context, ticket *models.Ticket, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ticket).Error; err != nil {
			return err
		}
		msg.TicketID = ticket.ID
		return tx.Create(msg).Error
	})
}

func (r *ticketRepo) AppendMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Ticket{}).
			Where("id = ?", msg.TicketID).
			Update("updated_at", time.Now()).Error
	})
}

func (r *ticketRepo) GetMessageByUUID(ctx context.Context, ticketID uuid.UUID, messageUUID string) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		First(&msg, "ticket_id = ? AND message_uuid = ?", ticketID, messageUUID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *ticketRepo) GetMessageByClient(ctx context.Context, clientID uuid.UUID, messageUUID string) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		Select("messages.*").
		Joins("JOIN tickets ON tickets.id = messages.ticket_id").
		Where("tickets.client_id = ? AND messages.message_uuid = ?", clientID, messageUUID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *ticketRepo) UpdateMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Save(msg).Error
}

func (r *ticketRepo) MarkSolved(ctx context.Context, ticketID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ?", ticketID).
		Update("status", models.TicketStatusSolved).Error
}

func (r *ticketRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&tickets).Error
	return tickets, err
}

func (r *ticketRepo) ListMessages(ctx context.Context, ticketID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("ticket_id = ? AND is_deleted = ?", ticketID, false).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}
