package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleTriggerType distinguishes keyword-based from similarity-based rules
type RuleTriggerType string

const (
	TriggerKeyword    RuleTriggerType = "keyword"
	TriggerSimilarity RuleTriggerType = "similarity"
)

// ThresholdRule configures per-owner escalation behaviour. Keyword rules fire
// on a case-insensitive substring match regardless of similarity score;
// similarity rules set the confidence threshold for auto-reply.
type ThresholdRule struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"owner_id"`
	RuleName            string          `gorm:"type:text;not null" json:"rule_name"`
	TriggerType         RuleTriggerType `gorm:"type:text;not null" json:"trigger_type"`
	Keyword             string          `gorm:"type:text" json:"keyword"`
	Action              string          `gorm:"type:text" json:"action"`
	ConfidenceThreshold float64         `gorm:"not null;default:0.5" json:"confidence_threshold"`
	IsActive            bool            `gorm:"default:true" json:"is_active"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ThresholdRule) TableName() string {
	return "threshold_rules"
}

func (r *ThresholdRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
