package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/supportsphere/escalation-engine/internal/models"
)

// KBRepo persists the knowledge base: FAQ entries, documents, and their
// chunk sets. It satisfies ingest.ChunkStore.
type KBRepo interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListDocumentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error)

	GetChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]models.DocChunk, error)
	ReplaceChunks(ctx context.Context, doc *models.Document, chunks []models.DocChunk) error
	ListChunksByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.DocChunk, error)

	// ListOwnerIDs returns every owner with knowledge content, for the
	// periodic index rebuild
	ListOwnerIDs(ctx context.Context) ([]uuid.UUID, error)

	CreateFaq(ctx context.Context, faq *models.Faq) error
	GetFaq(ctx context.Context, id uuid.UUID) (*models.Faq, error)
	UpdateFaq(ctx context.Context, faq *models.Faq) error
	DeleteFaq(ctx context.Context, id uuid.UUID) error
	ListFaqsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Faq, error)
}

type kbRepo struct {
	db *gorm.DB
}

func NewKBRepo(db *gorm.DB) KBRepo {
	return &kbRepo{db: db}
}

func (r *kbRepo) CreateDocument(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *kbRepo) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *kbRepo) ListDocumentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

func (r *kbRepo) GetChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]models.DocChunk, error) {
	var chunks []models.DocChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

func (r *kbRepo) ReplaceChunks(ctx context.Context, doc *models.Document, chunks []models.DocChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).
			Delete(&models.DocChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) > 0 {
			if err := tx.Create(&chunks).Error; err != nil {
				return err
			}
		}
		now := time.Now()
		doc.ChunkedAt = &now
		return tx.Model(&models.Document{}).
			Where("id = ?", doc.ID).
			Update("chunked_at", now).Error
	})
}

func (r *kbRepo) ListChunksByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.DocChunk, error) {
	var chunks []models.DocChunk
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("document_id ASC, chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

func (r *kbRepo) ListOwnerIDs(ctx context.Context) ([]uuid.UUID, error) {
	var faqOwners []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.Faq{}).
		Distinct("owner_id").
		Pluck("owner_id", &faqOwners).Error; err != nil {
		return nil, err
	}

	var docOwners []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.Document{}).
		Distinct("owner_id").
		Pluck("owner_id", &docOwners).Error; err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(faqOwners)+len(docOwners))
	owners := make([]uuid.UUID, 0, len(faqOwners)+len(docOwners))
	for _, id := range append(faqOwners, docOwners...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		owners = append(owners, id)
	}
	return owners, nil
}

func (r *kbRepo) CreateFaq(ctx context.Context, faq *models.Faq) error {
	return r.db.WithContext(ctx).Create(faq).Error
}

func (r *kbRepo) GetFaq(ctx context.Context, id uuid.UUID) (*models.Faq, error) {
	var faq models.Faq
	err := r.db.WithContext(ctx).First(&faq, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &faq, nil
}

func (r *kbRepo) UpdateFaq(ctx context.Context, faq *models.Faq) error {
	return r.db.WithContext(ctx).Save(faq).Error
}

func (r *kbRepo) DeleteFaq(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Faq{}, "id = ?", id).Error
}

func (r *kbRepo) ListFaqsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Faq, error) {
	var faqs []models.Faq
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&faqs).Error
	return faqs, err
}
