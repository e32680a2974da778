package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is an ingested knowledge source. Immutable once chunked;
// re-ingestion replaces the chunk set transactionally.
type Document struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title     string     `gorm:"type:text;not null" json:"title"`
	Source    string     `gorm:"type:text" json:"source"`
	MimeType  string     `gorm:"type:text" json:"mime_type"`
	ChunkedAt *time.Time `json:"chunked_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DocChunk is a bounded slice of a document, embedded and retrieved
// independently. ChunkIndex is 0-based and contiguous within a document.
// TextHash deduplicates identical content across re-ingestions.
type DocChunk struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	DocumentID uuid.UUID      `gorm:"type:uuid;not null;index:idx_doc_hash" json:"document_id"`
	ChunkIndex int            `gorm:"not null" json:"chunk_index"`
	Text       string         `gorm:"type:text;not null" json:"text"`
	TextHash   string         `gorm:"type:text;not null;index:idx_doc_hash" json:"text_hash"`
	TokenCount int            `gorm:"not null" json:"token_count"`
	Embedding  datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	Document Document `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (DocChunk) TableName() string {
	return "doc_chunks"
}

func (c *DocChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Faq is a knowledge base Q&A entry with two embeddings: one over the
// question alone and one over question+answer.
type Faq struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	Category      string         `gorm:"type:text" json:"category"`
	Question      string         `gorm:"type:text;not null" json:"question"`
	Answer        string         `gorm:"type:text;not null" json:"answer"`
	AnswerSummary string         `gorm:"type:text" json:"answer_summary"`
	EmbQuestion   datatypes.JSON `gorm:"type:jsonb" json:"-"`
	EmbQa         datatypes.JSON `gorm:"type:jsonb" json:"-"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Faq) TableName() string {
	return "faqs"
}

func (f *Faq) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// EncodeVector serializes an embedding vector for JSONB storage
func EncodeVector(v []float32) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// DecodeVector deserializes a stored embedding vector. Returns nil for
// empty or malformed payloads.
func DecodeVector(raw datatypes.JSON) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
