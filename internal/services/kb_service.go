package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/supportsphere/escalation-engine/internal/core/ingest"
	"github.com/supportsphere/escalation-engine/internal/core/kb"
	"github.com/supportsphere/escalation-engine/internal/core/vector"
	"github.com/supportsphere/escalation-engine/internal/models"
	"github.com/supportsphere/escalation-engine/internal/repositories"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

// KBService manages the knowledge base: FAQ entries with their dual
// embeddings, document ingestion, and the serving index.
type KBService struct {
	repo      repositories.KBRepo
	embedder  vector.EmbeddingProvider
	retriever *kb.Retriever
	pipeline  *ingest.Pipeline
}

func NewKBService(repo repositories.KBRepo, embedder vector.EmbeddingProvider, retriever *kb.Retriever, pipeline *ingest.Pipeline) *KBService {
	return &KBService{
		repo:      repo,
		embedder:  embedder,
		retriever: retriever,
		pipeline:  pipeline,
	}
}

// FaqInput is the writable part of an FAQ entry
type FaqInput struct {
	Category      string `json:"category"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	AnswerSummary string `json:"answer_summary"`
}

// CreateFaq embeds the question and the question+answer text, stores the
// entry, and indexes both vectors
func (s *KBService) CreateFaq(ctx context.Context, ownerID uuid.UUID, input FaqInput) (*models.Faq, error) {
	faq := &models.Faq{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Category:      input.Category,
		Question:      input.Question,
		Answer:        input.Answer,
		AnswerSummary: input.AnswerSummary,
	}

	if err := s.embedFaq(ctx, faq); err != nil {
		return nil, err
	}
	if err := s.repo.CreateFaq(ctx, faq); err != nil {
		return nil, err
	}
	if err := s.retriever.IndexFaq(ctx, faq); err != nil {
		utils.LogWarn("failed to index faq, periodic rebuild will repair", map[string]interface{}{
			"faq_id": faq.ID.String(),
			"error":  err.Error(),
		})
	}
	return faq, nil
}

// UpdateFaq rewrites an FAQ entry, re-embedding and re-indexing it
func (s *KBService) UpdateFaq(ctx context.Context, id uuid.UUID, input FaqInput) (*models.Faq, error) {
	faq, err := s.repo.GetFaq(ctx, id)
	if err != nil {
		return nil, err
	}
	if faq == nil {
		return nil, fmt.Errorf("faq %s not found", id)
	}

	faq.Category = input.Category
	faq.Question = input.Question
	faq.Answer = input.Answer
	faq.AnswerSummary = input.AnswerSummary

	if err := s.embedFaq(ctx, faq); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFaq(ctx, faq); err != nil {
		return nil, err
	}
	if err := s.retriever.IndexFaq(ctx, faq); err != nil {
		utils.LogWarn("failed to reindex faq, periodic rebuild will repair", map[string]interface{}{
			"faq_id": faq.ID.String(),
			"error":  err.Error(),
		})
	}
	return faq, nil
}

// DeleteFaq removes an FAQ entry and its index points
func (s *KBService) DeleteFaq(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteFaq(ctx, id); err != nil {
		return err
	}
	if err := s.retriever.RemoveFaq(ctx, id); err != nil {
		utils.LogWarn("failed to remove faq from index", map[string]interface{}{
			"faq_id": id.String(),
			"error":  err.Error(),
		})
	}
	return nil
}

func (s *KBService) ListFaqs(ctx context.Context, ownerID uuid.UUID) ([]models.Faq, error) {
	return s.repo.ListFaqsByOwner(ctx, ownerID)
}

func (s *KBService) embedFaq(ctx context.Context, faq *models.Faq) error {
	qaText := faq.Question + "\n" + faq.Answer
	vectors, err := s.embedder.GenerateBatchEmbeddings(ctx, []string{faq.Question, qaText})
	if err != nil {
		return fmt.Errorf("failed to embed faq: %w", err)
	}
	faq.EmbQuestion = models.EncodeVector(vectors[0])
	faq.EmbQa = models.EncodeVector(vectors[1])
	return nil
}

// DocumentInput is the writable part of an ingested document
type DocumentInput struct {
	Title    string `json:"title"`
	Source   string `json:"source"`
	MimeType string `json:"mime_type"`
	Text     string `json:"text"`
}

// IngestDocument registers a document and runs the chunking pipeline over
// its text
func (s *KBService) IngestDocument(ctx context.Context, ownerID uuid.UUID, input DocumentInput) (*models.Document, []models.DocChunk, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, nil, ingest.ErrEmptyText
	}

	doc := &models.Document{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Title:    input.Title,
		Source:   input.Source,
		MimeType: input.MimeType,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, nil, err
	}

	chunks, err := s.pipeline.Ingest(ctx, doc, input.Text)
	if err != nil {
		return nil, nil, err
	}
	return doc, chunks, nil
}

// ReingestDocument re-runs the pipeline over an existing document. Chunks
// whose text is unchanged keep their stored embeddings.
func (s *KBService) ReingestDocument(ctx context.Context, documentID uuid.UUID, text string) ([]models.DocChunk, error) {
	doc, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Ingest(ctx, doc, text)
}

func (s *KBService) ListDocuments(ctx context.Context, ownerID uuid.UUID) ([]models.Document, error) {
	return s.repo.ListDocumentsByOwner(ctx, ownerID)
}

// Retrieve exposes ranked retrieval directly, mainly for the debug endpoint
func (s *KBService) Retrieve(ctx context.Context, ownerID uuid.UUID, query string, topK int) ([]kb.RetrievalResult, error) {
	if topK <= 0 {
		topK = kb.DefaultTopK
	}
	return s.retriever.Retrieve(ctx, ownerID, query, topK)
}

// ReindexOwner rebuilds the owner's index from stored embeddings
func (s *KBService) ReindexOwner(ctx context.Context, ownerID uuid.UUID) error {
	faqs, err := s.repo.ListFaqsByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	chunks, err := s.repo.ListChunksByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	return s.retriever.ReindexOwner(ctx, ownerID, faqs, chunks)
}

// ReindexAll rebuilds every owner's index. Run periodically and at worker
// startup so a memory-backed index survives restarts.
func (s *KBService) ReindexAll(ctx context.Context) error {
	owners, err := s.repo.ListOwnerIDs(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, ownerID := range owners {
		if err := s.ReindexOwner(ctx, ownerID); err != nil {
			failed++
			utils.LogError("failed to reindex owner", err, map[string]interface{}{
				"owner_id": ownerID.String(),
			})
		}
	}

	utils.LogInfo("index rebuild finished", map[string]interface{}{
		"owners": len(owners),
		"failed": failed,
	})
	if failed > 0 {
		return fmt.Errorf("reindex failed for %d of %d owners", failed, len(owners))
	}
	return nil
}
