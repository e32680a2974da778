package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryProvider is an in-process Provider backed by owner-partitioned maps.
// Search is a brute-force cosine scan, O(n) in the owner's point count; the
// partition keeps unrelated owners out of the scan entirely.
type MemoryProvider struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	mu         sync.RWMutex
	vectorSize int
	// points keyed by partition (owner_id payload) then point ID
	partitions map[string]map[string]Point
}

// NewMemoryProvider creates an empty in-memory vector provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		collections: make(map[string]*memoryCollection),
	}
}

func (p *MemoryProvider) Initialize(ctx context.Context) error {
	return nil
}

func (p *MemoryProvider) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.collections[name]; ok {
		return nil
	}
	p.collections[name] = &memoryCollection{
		vectorSize: vectorSize,
		partitions: make(map[string]map[string]Point),
	}
	return nil
}

func (p *MemoryProvider) collection(name string) (*memoryCollection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c, ok := p.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

func partitionKey(payload map[string]interface{}) string {
	if payload == nil {
		return ""
	}
	if owner, ok := payload["owner_id"].(string); ok {
		return owner
	}
	return ""
}

func (p *MemoryProvider) Upsert(ctx context.Context, collection string, points []Point) error {
	c, err := p.collection(collection)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.insertLocked(points)
}

func (c *memoryCollection) insertLocked(points []Point) error {
	for _, pt := range points {
		if len(pt.Vector) != c.vectorSize {
			return fmt.Errorf("%w: point %s has %d dims, collection expects %d",
				ErrDimensionMismatch, pt.ID, len(pt.Vector), c.vectorSize)
		}
		key := partitionKey(pt.Payload)
		part, ok := c.partitions[key]
		if !ok {
			part = make(map[string]Point)
			c.partitions[key] = part
		}
		part[pt.ID] = pt
	}
	return nil
}

// Replace swaps all points matching the filter for the given points under a
// single write lock, so a concurrent Search never sees a partial mix.
func (p *MemoryProvider) Replace(ctx context.Context, collection string, filter *Filter, points []Point) error {
	c, err := p.collection(collection)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, part := range c.partitions {
		for id, pt := range part {
			if matchesFilter(pt.Payload, filter) {
				delete(part, id)
			}
		}
		if len(part) == 0 {
			delete(c.partitions, key)
		}
	}

	return c.insertLocked(points)
}

func (p *MemoryProvider) Search(ctx context.Context, collection string, query []float32, limit int, filter *Filter) ([]SearchResult, error) {
	c, err := p.collection(collection)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(query) != c.vectorSize {
		return nil, fmt.Errorf("%w: query has %d dims, collection expects %d",
			ErrDimensionMismatch, len(query), c.vectorSize)
	}

	// Scan only the owner's partition when the filter pins one
	scan := c.partitions
	if owner, ok := ownerCondition(filter); ok {
		part, exists := c.partitions[owner]
		if !exists {
			return nil, nil
		}
		scan = map[string]map[string]Point{owner: part}
	}

	var results []SearchResult
	for _, part := range scan {
		for _, pt := range part {
			if !matchesFilter(pt.Payload, filter) {
				continue
			}
			results = append(results, SearchResult{
				ID:      pt.ID,
				Score:   CosineSimilarity(query, pt.Vector),
				Payload: pt.Payload,
			})
		}
	}

	// Score descending, point ID ascending on ties for deterministic output
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (p *MemoryProvider) Delete(ctx context.Context, collection string, ids []string) error {
	c, err := p.collection(collection)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, part := range c.partitions {
		for _, id := range ids {
			delete(part, id)
		}
	}
	return nil
}

func (p *MemoryProvider) GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error) {
	c, err := p.collection(collection)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var count int64
	for _, part := range c.partitions {
		count += int64(len(part))
	}

	return &CollectionInfo{
		Name:        collection,
		VectorSize:  c.vectorSize,
		PointsCount: count,
		Status:      "green",
	}, nil
}

func (p *MemoryProvider) Close() error {
	return nil
}

func (p *MemoryProvider) GetProviderType() string {
	return "memory"
}

func ownerCondition(filter *Filter) (string, bool) {
	if filter == nil {
		return "", false
	}
	for _, cond := range filter.Must {
		if cond.Key == "owner_id" {
			if owner, ok := cond.Match.(string); ok {
				return owner, true
			}
		}
	}
	return "", false
}

func matchesFilter(payload map[string]interface{}, filter *Filter) bool {
	if filter == nil {
		return true
	}
	for _, cond := range filter.Must {
		if payload == nil || payload[cond.Key] != cond.Match {
			return false
		}
	}
	return true
}
