package redis

import (
	"context"
	"time"

	"rust-vip-platform/internal/domain/ports/repository"
)

var _ repository.MarkerStore = (*MarkerStore)(nil)

const markerPrefix = "processed:"

// MarkerStore keeps processed-notification markers in Redis so they survive
// restarts and are shared between instances. Markers expire after ttl.
type MarkerStore struct {
	client *Client
	ttl    time.Duration
}

func NewMarkerStore(client *Client, ttl time.Duration) *MarkerStore {
	return &MarkerStore{client: client, ttl: ttl}
}

func (s *MarkerStore) Seen(ctx context.Context, key string) (bool, error) {
	return s.client.Exists(ctx, markerPrefix+key)
}

func (s *MarkerStore) Mark(ctx context.Context, key string) error {
	_, err := s.client.SetNX(ctx, markerPrefix+key, time.Now().Unix(), s.ttl)
	return err
}
