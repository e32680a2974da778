package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TicketStatus represents the lifecycle state of a ticket
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusSolved TicketStatus = "solved"
)

// MessageSender identifies who authored a message in a ticket thread
type MessageSender string

const (
	SenderClient MessageSender = "client"
	SenderBot    MessageSender = "bot"
	SenderAgent  MessageSender = "agent"
)

// Ticket represents one support case for a client.
// Lifecycle is open → solved; solved is terminal, reopening means a new ticket.
type Ticket struct {
	ID        uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"owner_id"`
	ClientID  uuid.UUID    `gorm:"type:uuid;not null;index" json:"client_id"`
	Status    TicketStatus `gorm:"type:text;not null;default:'open';index" json:"status"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	Client Client `gorm:"foreignKey:ClientID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Ticket) TableName() string {
	return "tickets"
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Message is an ordered entry in a ticket's thread. Rows are never physically
// removed: edits set IsEdited, deletes set IsDeleted and blank the content.
type Message struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	TicketID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_ticket_uuid,unique" json:"ticket_id"`
	MessageUUID string         `gorm:"type:text;not null;index:idx_ticket_uuid,unique" json:"message_uuid"`
	Sender      MessageSender  `gorm:"type:text;not null" json:"sender"`
	Content     string         `gorm:"type:text" json:"content"`
	Outcome     datatypes.JSON `gorm:"type:jsonb" json:"outcome,omitempty"`
	IsEdited    bool           `gorm:"default:false" json:"is_edited"`
	IsDeleted   bool           `gorm:"default:false" json:"is_deleted"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	Ticket Ticket `gorm:"foreignKey:TicketID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
