package cache

import (
	"context"

	"rust-vip-platform/internal/domain/ports/repository"
)

var _ repository.MarkerStore = (*MarkerSet)(nil)

// MarkerSet is the process-local idempotency marker store. Markers never
// expire but the oldest 20% are dropped when the set is full, so a very old
// notification may be processed again after eviction or a restart.
type MarkerSet struct {
	set *Bounded[string, struct{}]
}

func NewMarkerSet(capacity int) *MarkerSet {
	return &MarkerSet{set: NewBounded[string, struct{}](capacity, 0)}
}

func (m *MarkerSet) Seen(_ context.Context, key string) (bool, error) {
	return m.set.Contains(key), nil
}

func (m *MarkerSet) Mark(_ context.Context, key string) error {
	m.set.Add(key, struct{}{})
	return nil
}

func (m *MarkerSet) Len() int { return m.set.Len() }
