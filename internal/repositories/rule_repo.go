package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportsphere/escalation-engine/internal/models"
)

// RuleRepo persists threshold rules. Rules are always loaded in creation
// order so keyword precedence stays stable across evaluations.
type RuleRepo interface {
	Create(ctx context.Context, rule *models.ThresholdRule) error
	Update(ctx context.Context, rule *models.ThresholdRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ThresholdRule, error)
	// ListActiveByOwner returns the owner's active rules in creation order
	ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.ThresholdRule, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.ThresholdRule, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ruleRepo struct {
	db *gorm.DB
}

func NewRuleRepo(db *gorm.DB) RuleRepo {
	return &ruleRepo{db: db}
}

func (r *ruleRepo) Create(ctx context.Context, rule *models.ThresholdRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *ruleRepo) Update(ctx context.Context, rule *models.ThresholdRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *ruleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ThresholdRule, error) {
	var rule models.ThresholdRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepo) ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.ThresholdRule, error) {
	var rules []models.ThresholdRule
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("created_at ASC").
		Find(&rules).Error
	return rules, err
}

func (r *ruleRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.ThresholdRule, error) {
	var rules []models.ThresholdRule
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&rules).Error
	return rules, err
}

func (r *ruleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ThresholdRule{}, "id = ?", id).Error
}
