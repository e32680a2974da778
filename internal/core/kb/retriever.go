package kb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supportsphere/escalation-engine/internal/core/vector"
	"github.com/supportsphere/escalation-engine/internal/models"
)

// Collection holds every knowledge embedding, partitioned by owner inside
// the provider.
const Collection = "knowledge"

// DefaultTopK is the result cap used when the caller does not supply one
const DefaultTopK = 5

// SourceKind tags the origin of a retrieval result
type SourceKind string

const (
	SourceFaq   SourceKind = "faq"
	SourceChunk SourceKind = "chunk"
)

// RetrievalResult is one ranked knowledge base candidate. Kind tells whether
// the payload came from an FAQ entry or a document chunk; Answer is always
// the displayable reply text.
type RetrievalResult struct {
	Kind      SourceKind `json:"kind"`
	RefID     uuid.UUID  `json:"ref_id"`
	Score     float32    `json:"score"`
	Question  string     `json:"question,omitempty"`
	Answer    string     `json:"answer"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Retriever provides semantic search over FAQ entries and document chunks.
// FAQ entries carry two vectors (question-only and question+answer); the
// entry's score is the maximum of the two.
type Retriever struct {
	provider vector.Provider
	embedder vector.EmbeddingProvider
}

// NewRetriever creates a retriever over the given vector provider and
// embedding provider
func NewRetriever(provider vector.Provider, embedder vector.EmbeddingProvider) *Retriever {
	return &Retriever{
		provider: provider,
		embedder: embedder,
	}
}

// Initialize ensures the knowledge collection exists with the embedder's
// dimensionality
func (r *Retriever) Initialize(ctx context.Context) error {
	if err := r.provider.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize vector provider: %w", err)
	}
	return r.provider.CreateCollection(ctx, Collection, r.embedder.GetDimensions())
}

// Retrieve returns the topK best-scoring knowledge entries for the owner,
// sorted by score descending with ties broken by most recent update.
// Identical inputs against identical stored data yield identical ordering.
func (r *Retriever) Retrieve(ctx context.Context, ownerID uuid.UUID, queryText string, topK int) ([]RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, ErrEmptyQuery
	}

	queryVec, err := r.embedder.GenerateEmbedding(ctx, queryText)
	if err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: query embedding: %v", ErrRetrievalFailed, err)
	}

	filter := &vector.Filter{
		Must: []vector.Condition{
			{Key: "owner_id", Match: ownerID.String()},
		},
	}

	// FAQ entries contribute two points each, so over-fetch before merging
	hits, err := r.provider.Search(ctx, Collection, queryVec, topK*2+8, filter)
	if err != nil {
		if errors.Is(err, vector.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: search: %v", ErrRetrievalFailed, err)
	}

	merged := make(map[uuid.UUID]RetrievalResult)
	for _, hit := range hits {
		res, ok := resultFromPayload(hit)
		if !ok {
			continue
		}
		if prev, seen := merged[res.RefID]; !seen || res.Score > prev.Score {
			merged[res.RefID] = res
		}
	}

	results := make([]RetrievalResult, 0, len(merged))
	for _, res := range merged {
		results = append(results, res)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].UpdatedAt.Equal(results[j].UpdatedAt) {
			return results[i].UpdatedAt.After(results[j].UpdatedAt)
		}
		return results[i].RefID.String() < results[j].RefID.String()
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// IndexFaq upserts both vectors of an FAQ entry into the knowledge collection
func (r *Retriever) IndexFaq(ctx context.Context, faq *models.Faq) error {
	embQuestion := models.DecodeVector(faq.EmbQuestion)
	embQa := models.DecodeVector(faq.EmbQa)
	if embQuestion == nil || embQa == nil {
		return fmt.Errorf("faq %s has no stored embeddings", faq.ID)
	}

	points := []vector.Point{
		{
			ID:      faqPointID(faq.ID, "question"),
			Vector:  embQuestion,
			Payload: faqPayload(faq),
		},
		{
			ID:      faqPointID(faq.ID, "qa"),
			Vector:  embQa,
			Payload: faqPayload(faq),
		},
	}
	return r.provider.Upsert(ctx, Collection, points)
}

// RemoveFaq deletes both vectors of an FAQ entry from the index
func (r *Retriever) RemoveFaq(ctx context.Context, faqID uuid.UUID) error {
	return r.provider.Delete(ctx, Collection, []string{
		faqPointID(faqID, "question"),
		faqPointID(faqID, "qa"),
	})
}

// IndexDocumentChunks swaps a document's chunk points in one replace, so a
// concurrent query sees the old complete set or the new one, never a mix
func (r *Retriever) IndexDocumentChunks(ctx context.Context, doc *models.Document, chunks []models.DocChunk) error {
	filter := &vector.Filter{
		Must: []vector.Condition{
			{Key: "owner_id", Match: doc.OwnerID.String()},
			{Key: "document_id", Match: doc.ID.String()},
		},
	}

	points := make([]vector.Point, 0, len(chunks))
	for _, chunk := range chunks {
		emb := models.DecodeVector(chunk.Embedding)
		if emb == nil {
			return fmt.Errorf("chunk %s has no stored embedding", chunk.ID)
		}
		points = append(points, vector.Point{
			ID:     chunk.ID.String(),
			Vector: emb,
			Payload: map[string]interface{}{
				"kind":        string(SourceChunk),
				"ref_id":      chunk.ID.String(),
				"owner_id":    chunk.OwnerID.String(),
				"document_id": chunk.DocumentID.String(),
				"answer":      chunk.Text,
				"updated_at":  chunk.UpdatedAt.UnixNano(),
			},
		})
	}

	return r.provider.Replace(ctx, Collection, filter, points)
}

// ReindexOwner replaces everything indexed for an owner with a fresh
// snapshot of their FAQ entries and chunks. Used by the periodic rebuild.
func (r *Retriever) ReindexOwner(ctx context.Context, ownerID uuid.UUID, faqs []models.Faq, chunks []models.DocChunk) error {
	filter := &vector.Filter{
		Must: []vector.Condition{
			{Key: "owner_id", Match: ownerID.String()},
		},
	}

	var points []vector.Point
	for i := range faqs {
		faq := &faqs[i]
		embQuestion := models.DecodeVector(faq.EmbQuestion)
		embQa := models.DecodeVector(faq.EmbQa)
		if embQuestion == nil || embQa == nil {
			continue
		}
		points = append(points,
			vector.Point{ID: faqPointID(faq.ID, "question"), Vector: embQuestion, Payload: faqPayload(faq)},
			vector.Point{ID: faqPointID(faq.ID, "qa"), Vector: embQa, Payload: faqPayload(faq)},
		)
	}
	for _, chunk := range chunks {
		emb := models.DecodeVector(chunk.Embedding)
		if emb == nil {
			continue
		}
		points = append(points, vector.Point{
			ID:     chunk.ID.String(),
			Vector: emb,
			Payload: map[string]interface{}{
				"kind":        string(SourceChunk),
				"ref_id":      chunk.ID.String(),
				"owner_id":    chunk.OwnerID.String(),
				"document_id": chunk.DocumentID.String(),
				"answer":      chunk.Text,
				"updated_at":  chunk.UpdatedAt.UnixNano(),
			},
		})
	}

	return r.provider.Replace(ctx, Collection, filter, points)
}

// faqPointID derives a stable per-vector point ID from the FAQ row ID
func faqPointID(faqID uuid.UUID, vectorKind string) string {
	return uuid.NewSHA1(faqID, []byte(vectorKind)).String()
}

func faqPayload(faq *models.Faq) map[string]interface{} {
	answer := faq.Answer
	if faq.AnswerSummary != "" {
		answer = faq.AnswerSummary
	}
	return map[string]interface{}{
		"kind":       string(SourceFaq),
		"ref_id":     faq.ID.String(),
		"owner_id":   faq.OwnerID.String(),
		"question":   faq.Question,
		"answer":     answer,
		"updated_at": faq.UpdatedAt.UnixNano(),
	}
}

func resultFromPayload(hit vector.SearchResult) (RetrievalResult, bool) {
	payload := hit.Payload
	if payload == nil {
		return RetrievalResult{}, false
	}

	kind, _ := payload["kind"].(string)
	refRaw, _ := payload["ref_id"].(string)
	refID, err := uuid.Parse(refRaw)
	if err != nil {
		return RetrievalResult{}, false
	}

	answer, _ := payload["answer"].(string)
	question, _ := payload["question"].(string)

	var updatedAt time.Time
	switch v := payload["updated_at"].(type) {
	case int64:
		updatedAt = time.Unix(0, v)
	case float64:
		updatedAt = time.Unix(0, int64(v))
	}

	return RetrievalResult{
		Kind:      SourceKind(kind),
		RefID:     refID,
		Score:     hit.Score,
		Question:  question,
		Answer:    answer,
		UpdatedAt: updatedAt,
	}, true
}
