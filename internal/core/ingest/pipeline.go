package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/supportsphere/escalation-engine/internal/core/vector"
	"github.com/supportsphere/escalation-engine/internal/models"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

const (
	embedBatchSize   = 64
	embedParallelism = 4
)

// ChunkStore persists document chunks. Implemented by the KB repository.
type ChunkStore interface {
	// GetChunksByDocument returns the current chunk set of a document
	GetChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]models.DocChunk, error)

	// ReplaceChunks transactionally swaps a document's chunk set and stamps
	// the document as chunked
	ReplaceChunks(ctx context.Context, doc *models.Document, chunks []models.DocChunk) error
}

// Indexer pushes a document's chunk embeddings into the serving index.
// Implemented by the kb retriever.
type Indexer interface {
	IndexDocumentChunks(ctx context.Context, doc *models.Document, chunks []models.DocChunk) error
}

// Pipeline turns a raw document into ordered, hashed, embedded chunks.
// Re-ingestion is idempotent: chunks whose text hash already exists for the
// document keep their row and embedding instead of being recomputed.
type Pipeline struct {
	chunker  *Chunker
	embedder vector.EmbeddingProvider
	store    ChunkStore
	indexer  Indexer
}

// NewPipeline creates an ingestion pipeline
func NewPipeline(chunker *Chunker, embedder vector.EmbeddingProvider, store ChunkStore, indexer Indexer) *Pipeline {
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		indexer:  indexer,
	}
}

// Ingest splits rawText into chunks, embeds the ones not seen before, and
// replaces the document's chunk set. Returns the new ordered chunk list.
func (p *Pipeline) Ingest(ctx context.Context, doc *models.Document, rawText string) ([]models.DocChunk, error) {
	spans, err := p.chunker.Split(rawText)
	if err != nil {
		return nil, err
	}

	// Existing chunks by hash, for embedding reuse on re-ingestion
	existing, err := p.store.GetChunksByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: load existing chunks: %v", ErrIngestionFailed, err)
	}
	byHash := make(map[string]models.DocChunk, len(existing))
	for _, c := range existing {
		byHash[c.TextHash] = c
	}

	chunks := make([]models.DocChunk, len(spans))
	var toEmbed []int
	// A document may repeat the same text at several positions; only the
	// first occurrence keeps the previous row's ID, later ones get fresh
	// rows with the reused embedding.
	usedIDs := make(map[uuid.UUID]bool, len(existing))
	for i, span := range spans {
		hash := HashText(span.Text)
		if prev, ok := byHash[hash]; ok && len(prev.Embedding) > 0 {
			id := prev.ID
			if usedIDs[id] {
				id = uuid.New()
			}
			usedIDs[id] = true
			chunks[i] = models.DocChunk{
				ID:         id,
				OwnerID:    doc.OwnerID,
				DocumentID: doc.ID,
				ChunkIndex: i,
				Text:       span.Text,
				TextHash:   hash,
				TokenCount: span.TokenCount,
				Embedding:  prev.Embedding,
			}
			continue
		}
		chunks[i] = models.DocChunk{
			ID:         uuid.New(),
			OwnerID:    doc.OwnerID,
			DocumentID: doc.ID,
			ChunkIndex: i,
			Text:       span.Text,
			TextHash:   hash,
			TokenCount: span.TokenCount,
		}
		toEmbed = append(toEmbed, i)
	}

	if err := p.embedMissing(ctx, chunks, toEmbed); err != nil {
		return nil, err
	}

	if err := p.store.ReplaceChunks(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("%w: replace chunks: %v", ErrIngestionFailed, err)
	}

	if p.indexer != nil {
		if err := p.indexer.IndexDocumentChunks(ctx, doc, chunks); err != nil {
			// The database is authoritative; the index catches up on the next
			// rebuild sweep.
			utils.LogWarn("failed to refresh index after ingestion", map[string]interface{}{
				"document_id": doc.ID.String(),
				"error":       err.Error(),
			})
		}
	}

	utils.LogInfo("document ingested", map[string]interface{}{
		"document_id": doc.ID.String(),
		"owner_id":    doc.OwnerID.String(),
		"chunks":      len(chunks),
		"embedded":    len(toEmbed),
		"reused":      len(chunks) - len(toEmbed),
	})

	return chunks, nil
}

// embedMissing fills in embeddings for the chunk positions listed in missing,
// batching provider calls and running batches in parallel.
func (p *Pipeline) embedMissing(ctx context.Context, chunks []models.DocChunk, missing []int) error {
	if len(missing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallelism)

	for start := 0; start < len(missing); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, idx := range batch {
				texts[i] = chunks[idx].Text
			}

			vectors, err := p.embedder.GenerateBatchEmbeddings(gctx, texts)
			if err != nil {
				return fmt.Errorf("%w: generate embeddings: %v", ErrIngestionFailed, err)
			}

			for i, idx := range batch {
				chunks[idx].Embedding = models.EncodeVector(vectors[i])
			}
			return nil
		})
	}

	return g.Wait()
}
