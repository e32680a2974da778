package kb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportsphere/escalation-engine/internal/core/vector"
	"github.com/supportsphere/escalation-engine/internal/models"
)

// stubEmbedder maps known texts to fixed vectors so scores are controlled
// exactly by the test
type stubEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func (s *stubEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := s.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) GetDimensions() int { return 3 }

func (s *stubEmbedder) GetProviderName() string { return "stub" }

func newTestRetriever(t *testing.T, embedder *stubEmbedder) *Retriever {
	t.Helper()
	provider := vector.NewMemoryProvider()
	r := NewRetriever(provider, embedder)
	require.NoError(t, r.Initialize(context.Background()))
	return r
}

func testFaq(ownerID uuid.UUID, question, answer string, embQuestion, embQa []float32, updatedAt time.Time) *models.Faq {
	return &models.Faq{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Question:    question,
		Answer:      answer,
		EmbQuestion: models.EncodeVector(embQuestion),
		EmbQa:       models.EncodeVector(embQa),
		UpdatedAt:   updatedAt,
	}
}

func TestRetrieveValidation(t *testing.T) {
	ctx := context.Background()
	r := newTestRetriever(t, &stubEmbedder{fallback: []float32{1, 0, 0}})
	ownerID := uuid.New()

	t.Run("zero topK is rejected", func(t *testing.T) {
		_, err := r.Retrieve(ctx, ownerID, "query", 0)
		assert.ErrorIs(t, err, ErrInvalidTopK)
	})

	t.Run("negative topK is rejected", func(t *testing.T) {
		_, err := r.Retrieve(ctx, ownerID, "query", -3)
		assert.ErrorIs(t, err, ErrInvalidTopK)
	})

	t.Run("blank query is rejected", func(t *testing.T) {
		_, err := r.Retrieve(ctx, ownerID, "   ", 5)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})
}

func TestRetrieveFaqDualVectors(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("faq appears once with the max of its two scores", func(t *testing.T) {
		embedder := &stubEmbedder{
			vectors:  map[string][]float32{"query": {1, 0, 0}},
			fallback: []float32{0, 0, 1},
		}
		r := newTestRetriever(t, embedder)

		// Question vector matches the query exactly, qa vector is orthogonal
		faq := testFaq(ownerID, "How do I reset?", "Click reset.",
			[]float32{1, 0, 0}, []float32{0, 1, 0}, time.Now())
		require.NoError(t, r.IndexFaq(ctx, faq))

		results, err := r.Retrieve(ctx, ownerID, "query", 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, SourceFaq, results[0].Kind)
		assert.Equal(t, faq.ID, results[0].RefID)
		assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
		assert.Equal(t, "Click reset.", results[0].Answer)
	})

	t.Run("answer summary is preferred as the reply text", func(t *testing.T) {
		embedder := &stubEmbedder{
			vectors:  map[string][]float32{"query": {1, 0, 0}},
			fallback: []float32{0, 0, 1},
		}
		r := newTestRetriever(t, embedder)

		faq := testFaq(ownerID, "Long question", "A very long answer.",
			[]float32{1, 0, 0}, []float32{1, 0, 0}, time.Now())
		faq.AnswerSummary = "Short answer."
		require.NoError(t, r.IndexFaq(ctx, faq))

		results, err := r.Retrieve(ctx, ownerID, "query", 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Short answer.", results[0].Answer)
	})

	t.Run("reindexing a faq does not duplicate it", func(t *testing.T) {
		embedder := &stubEmbedder{
			vectors:  map[string][]float32{"query": {1, 0, 0}},
			fallback: []float32{0, 0, 1},
		}
		r := newTestRetriever(t, embedder)

		faq := testFaq(ownerID, "Q", "A", []float32{1, 0, 0}, []float32{0, 1, 0}, time.Now())
		require.NoError(t, r.IndexFaq(ctx, faq))
		require.NoError(t, r.IndexFaq(ctx, faq))

		results, err := r.Retrieve(ctx, ownerID, "query", 5)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("removed faq no longer appears", func(t *testing.T) {
		embedder := &stubEmbedder{
			vectors:  map[string][]float32{"query": {1, 0, 0}},
			fallback: []float32{0, 0, 1},
		}
		r := newTestRetriever(t, embedder)

		faq := testFaq(ownerID, "Q", "A", []float32{1, 0, 0}, []float32{0, 1, 0}, time.Now())
		require.NoError(t, r.IndexFaq(ctx, faq))
		require.NoError(t, r.RemoveFaq(ctx, faq.ID))

		results, err := r.Retrieve(ctx, ownerID, "query", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestRetrieveOrdering(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("results sort by score descending", func(t *testing.T) {
		embedder := &stubEmbedder{
			vectors:  map[string][]float32{"query": {1, 0, 0}},
			fallback: []float32{0, 0, 1},
		}
		r := newTestRetriever(t, embedder)

		strong := testFaq(ownerID, "strong", "strong answer",
			[]float32{1, 0, 0}, []float32{1, 0, 0}, time.Now())
		weak := testFaq(ownerID, "weak", "weak answer",
			[]float32{0.5, 0.5, 0}, []float32{0.5, 0.5, 0}, time.Now())
		require.NoError(t, r.IndexFaq(ctx, strong))
		require.NoError(t, r.IndexFaq(ctx, weak))

		results, err := r.Retrieve(ctx, ownerID, "query", 5)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, strong.ID, results[0].RefID)
		assert.Equal(t, weak.ID, results[1].RefID)
	})

	t.Run("equal scores break by most recent update", func(t *testing.T) {
		embedder := &stubEmbedder{
			vectors:  map[string][]float32{"query": {1, 0, 0}},
			fallback: []float32{0, 0, 1},
		}
		r := newTestRetriever(t, embedder)

		older := testFaq(ownerID, "older", "older answer",
			[]float32{1, 0, 0}, []float32{1, 0, 0}, time.Now().Add(-time.Hour))
		newer := testFaq(ownerID, "newer", "newer answer",
			[]float32{1, 0, 0}, []float32{1, 0, 0}, time.Now())
		require.NoError(t, r.IndexFaq(ctx, older))
		require.NoError(t, r.IndexFaq(ctx, newer))

		results, err := r.Retrieve(ctx, ownerID, "query", 5)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, newer.ID, results[0].RefID)
		assert.Equal(t, older.ID, results[1].RefID)
	})

	t.Run("topK truncates after merging", func(t *testing.T) {
		embedder := &stubEmbedder{
			vectors:  map[string][]float32{"query": {1, 0, 0}},
			fallback: []float32{0, 0, 1},
		}
		r := newTestRetriever(t, embedder)

		for i := 0; i < 4; i++ {
			faq := testFaq(ownerID, "q", "a",
				[]float32{1, 0, 0}, []float32{1, 0, 0}, time.Now())
			require.NoError(t, r.IndexFaq(ctx, faq))
		}

		results, err := r.Retrieve(ctx, ownerID, "query", 2)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("owners never see each other's entries", func(t *testing.T) {
		embedder := &stubEmbedder{
			vectors:  map[string][]float32{"query": {1, 0, 0}},
			fallback: []float32{0, 0, 1},
		}
		r := newTestRetriever(t, embedder)

		otherOwner := uuid.New()
		mine := testFaq(ownerID, "mine", "mine", []float32{1, 0, 0}, []float32{1, 0, 0}, time.Now())
		theirs := testFaq(otherOwner, "theirs", "theirs", []float32{1, 0, 0}, []float32{1, 0, 0}, time.Now())
		require.NoError(t, r.IndexFaq(ctx, mine))
		require.NoError(t, r.IndexFaq(ctx, theirs))

		results, err := r.Retrieve(ctx, ownerID, "query", 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, mine.ID, results[0].RefID)
	})
}

func TestIndexDocumentChunks(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	embedder := &stubEmbedder{
		vectors:  map[string][]float32{"query": {1, 0, 0}},
		fallback: []float32{0, 0, 1},
	}
	r := newTestRetriever(t, embedder)

	doc := &models.Document{ID: uuid.New(), OwnerID: ownerID}
	oldChunk := models.DocChunk{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		DocumentID: doc.ID,
		Text:       "old content",
		Embedding:  models.EncodeVector([]float32{1, 0, 0}),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, r.IndexDocumentChunks(ctx, doc, []models.DocChunk{oldChunk}))

	newChunk := models.DocChunk{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		DocumentID: doc.ID,
		Text:       "new content",
		Embedding:  models.EncodeVector([]float32{1, 0, 0}),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, r.IndexDocumentChunks(ctx, doc, []models.DocChunk{newChunk}))

	results, err := r.Retrieve(ctx, ownerID, "query", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, SourceChunk, results[0].Kind)
	assert.Equal(t, newChunk.ID, results[0].RefID)
	assert.Equal(t, "new content", results[0].Answer)
}

func TestReindexOwner(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	embedder := &stubEmbedder{
		vectors:  map[string][]float32{"query": {1, 0, 0}},
		fallback: []float32{0, 0, 1},
	}
	r := newTestRetriever(t, embedder)

	stale := testFaq(ownerID, "stale", "stale", []float32{1, 0, 0}, []float32{1, 0, 0}, time.Now())
	require.NoError(t, r.IndexFaq(ctx, stale))

	fresh := testFaq(ownerID, "fresh", "fresh", []float32{1, 0, 0}, []float32{1, 0, 0}, time.Now())
	chunk := models.DocChunk{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		DocumentID: uuid.New(),
		Text:       "chunk text",
		Embedding:  models.EncodeVector([]float32{0.8, 0.2, 0}),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, r.ReindexOwner(ctx, ownerID, []models.Faq{*fresh}, []models.DocChunk{chunk}))

	results, err := r.Retrieve(ctx, ownerID, "query", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	refs := []uuid.UUID{results[0].RefID, results[1].RefID}
	assert.Contains(t, refs, fresh.ID)
	assert.Contains(t, refs, chunk.ID)
	assert.NotContains(t, refs, stale.ID)
}
