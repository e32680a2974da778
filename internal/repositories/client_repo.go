package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportsphere/escalation-engine/internal/models"
)

type ClientRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	GetByPhone(ctx context.Context, phoneNumber string) (*models.Client, error)
	// GetOrCreateByPhone returns the client for a phone number, registering
	// one under the owner on first contact
	GetOrCreateByPhone(ctx context.Context, ownerID uuid.UUID, phoneNumber string) (*models.Client, error)
	// AssignAgent makes userID the client's single active agent, deactivating
	// any previous assignment in the same transaction
	AssignAgent(ctx context.Context, clientID, userID uuid.UUID) error
	GetActiveAgent(ctx context.Context, clientID uuid.UUID) (*models.ClientUser, error)
}

type clientRepo struct {
	db *gorm.DB
}

func NewClientRepo(db *gorm.DB) ClientRepo {
	return &clientRepo{db: db}
}

func (r *clientRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepo) GetByPhone(ctx context.Context, phoneNumber string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).First(&client, "phone_number = ?", phoneNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepo) GetOrCreateByPhone(ctx context.Context, ownerID uuid.UUID, phoneNumber string) (*models.Client, error) {
	client, err := r.GetByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	if client != nil {
		return client, nil
	}

	client = &models.Client{
		OwnerID:     ownerID,
		PhoneNumber: phoneNumber,
	}
	if err := r.db.WithContext(ctx).Create(client).Error; err != nil {
		// Concurrent first contact: the unique phone index decides the winner
		existing, lookupErr := r.GetByPhone(ctx, phoneNumber)
		if lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return client, nil
}

func (r *clientRepo) AssignAgent(ctx context.Context, clientID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ClientUser{}).
			Where("client_id = ? AND is_active = ?", clientID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}

		assignment := &models.ClientUser{
			ClientID: clientID,
			UserID:   userID,
			IsActive: true,
		}
		return tx.Create(assignment).Error
	})
}

func (r *clientRepo) GetActiveAgent(ctx context.Context, clientID uuid.UUID) (*models.ClientUser, error) {
	var assignment models.ClientUser
	err := r.db.WithContext(ctx).
		First(&assignment, "client_id = ? AND is_active = ?", clientID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}
