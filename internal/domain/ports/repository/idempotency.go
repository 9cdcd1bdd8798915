package repository

import "context"

// MarkerStore remembers notifications that were fully processed, keyed by
// "topic:id". Implementations may forget old markers.
type MarkerStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}
