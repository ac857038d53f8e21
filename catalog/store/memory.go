// Package store provides catalog.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/playforge/store-engine/catalog"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	offers map[string]catalog.Offer
}

func NewMemory() *Memory {
	return &Memory{offers: make(map[string]catalog.Offer)}
}

func (m *Memory) Insert(_ context.Context, offer catalog.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offer.ID] = offer.Clone()
	return nil
}

func (m *Memory) GetByIDs(_ context.Context, ids []string) ([]catalog.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	var result []catalog.Offer
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if offer, ok := m.offers[id]; ok {
			result = append(result, offer.Clone())
		}
	}
	sortByID(result)
	return result, nil
}

func (m *Memory) GetByTags(_ context.Context, tags []string) ([]catalog.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}

	var result []catalog.Offer
	for _, offer := range m.offers {
		for _, tag := range offer.Tags {
			if want[tag] {
				result = append(result, offer.Clone())
				break
			}
		}
	}
	sortByID(result)
	return result, nil
}

func (m *Memory) GetByAppIDs(_ context.Context, q catalog.AppQuery) ([]catalog.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []catalog.Offer
	for _, offer := range m.offers {
		if q.Cursor != "" && offer.ID <= q.Cursor {
			continue
		}
		if offer.VisibleIn(q.AppIDs) {
			matched = append(matched, offer.Clone())
		}
	}
	sortByID(matched)
	if len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (m *Memory) GetByTimestamp(_ context.Context, appID string, since time.Time) ([]catalog.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []catalog.Offer
	for _, offer := range m.offers {
		if offer.CreatedAt.Before(since) {
			continue
		}
		if offer.VisibleIn([]string{appID}) {
			result = append(result, offer.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) Update(_ context.Context, offerID string, patch catalog.Patch) (catalog.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	offer, ok := m.offers[offerID]
	if !ok {
		return catalog.Offer{}, catalog.ErrNotFound
	}
	updated := patch.Apply(offer)
	m.offers[offerID] = updated
	return updated.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, offerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.offers[offerID]; !ok {
		return catalog.ErrNotFound
	}
	delete(m.offers, offerID)
	return nil
}

func sortByID(offers []catalog.Offer) {
	sort.Slice(offers, func(i, j int) bool { return offers[i].ID < offers[j].ID })
}
