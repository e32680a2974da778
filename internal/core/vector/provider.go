package vector

import (
	"context"
)

// Provider defines the interface for vector index operations.
// Implementations: in-memory brute-force index (default) and Qdrant.
type Provider interface {
	// Initialize initializes the backing store
	Initialize(ctx context.Context) error

	// CreateCollection creates a new collection (if not exists)
	CreateCollection(ctx context.Context, name string, vectorSize int) error

	// Upsert inserts or updates points in a collection
	Upsert(ctx context.Context, collection string, points []Point) error

	// Replace atomically swaps every point matching the filter with the given
	// points. Readers observe either the old complete set or the new one.
	Replace(ctx context.Context, collection string, filter *Filter, points []Point) error

	// Search performs similarity search, highest score first
	Search(ctx context.Context, collection string, query []float32, limit int, filter *Filter) ([]SearchResult, error)

	// Delete deletes points by IDs
	Delete(ctx context.Context, collection string, ids []string) error

	// GetCollectionInfo gets information about a collection
	GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)

	// Close closes the connection
	Close() error

	// GetProviderType returns the provider type ("memory" or "qdrant")
	GetProviderType() string
}

// Point represents a vector point with metadata
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// SearchResult represents a search result
type SearchResult struct {
	ID      string                 `json:"id"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Filter represents search filters
type Filter struct {
	Must []Condition `json:"must,omitempty"`
}

// Condition represents an exact-match filter condition on a payload key
type Condition struct {
	Key   string      `json:"key"`
	Match interface{} `json:"match,omitempty"`
}

// CollectionInfo represents collection metadata
type CollectionInfo struct {
	Name        string `json:"name"`
	VectorSize  int    `json:"vector_size"`
	PointsCount int64  `json:"points_count"`
	Status      string `json:"status"`
}
