package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportsphere/escalation-engine/internal/models"
)

// EscalationRepo persists escalation records. It satisfies
// conversation.EscalationStore.
type EscalationRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escalation, error)
	GetPendingByClient(ctx context.Context, clientID uuid.UUID) (*models.Escalation, error)
	Create(ctx context.Context, esc *models.Escalation) error
	Update(ctx context.Context, esc *models.Escalation) error
	ResolveByTicket(ctx context.Context, ticketID uuid.UUID) error
	ListPendingByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Escalation, error)
}

type escalationRepo struct {
	db *gorm.DB
}

func NewEscalationRepo(db *gorm.DB) EscalationRepo {
	return &escalationRepo{db: db}
}

func (r *escalationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Escalation, error) {
	var esc models.Escalation
	if err := r.db.WithContext(ctx).First(&esc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &esc, nil
}

func (r *escalationRepo) GetPendingByClient(ctx context.Context, clientID uuid.UUID) (*models.Escalation, error) {
	var esc models.Escalation
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND status = ?", clientID, models.EscalationPending).
		Order("created_at DESC").
		First(&esc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &esc, nil
}

func (r *escalationRepo) Create(ctx context.Context, esc *models.Escalation) error {
	return r.db.WithContext(ctx).Create(esc).Error
}

func (r *escalationRepo) Update(ctx context.Context, esc *models.Escalation) error {
	return r.db.WithContext(ctx).Save(esc).Error
}

func (r *escalationRepo) ResolveByTicket(ctx context.Context, ticketID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Escalation{}).
		Where("ticket_id = ? AND status = ?", ticketID, models.EscalationPending).
		Update("status", models.EscalationResolved).Error
}

func (r *escalationRepo) ListPendingByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Escalation, error) {
	var escalations []models.Escalation
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, models.EscalationPending).
		Order("created_at DESC").
		Find(&escalations).Error
	return escalations, err
}
