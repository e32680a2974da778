package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EscalationStatus represents the lifecycle state of an escalation
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationResolved EscalationStatus = "resolved"
)

// Escalation is a conversation handed off from automated response to a human
// agent. At most one pending escalation exists per client; it resolves when
// the governing ticket is solved.
type Escalation struct {
	ID          uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"owner_id"`
	ClientID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"client_id"`
	TicketID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"ticket_id"`
	Status      EscalationStatus `gorm:"type:text;not null;default:'pending';index" json:"status"`
	Reason      string           `gorm:"type:text" json:"reason"`
	ChatHistory datatypes.JSON   `gorm:"type:jsonb" json:"chat_history"`
	ChatSummary string           `gorm:"type:text" json:"chat_summary"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`

	Client Client `gorm:"foreignKey:ClientID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Ticket Ticket `gorm:"foreignKey:TicketID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Escalation) TableName() string {
	return "escalations"
}

func (e *Escalation) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ChatTurn is one entry in an escalation's chat history payload
type ChatTurn struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
