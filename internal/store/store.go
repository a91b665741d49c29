// Package store persists the full session set. Writes are write-through:
// the registry hands over the complete collection on every mutation and the
// last writer wins. There is no migration or partial-write recovery.
package store

import (
	"context"

	"gendesk/internal/domain"
)

type Store interface {
	// Load reads the stored session collection. A missing or malformed
	// payload yields an empty set, not an error.
	Load(ctx context.Context) ([]*domain.ChatSession, error)
	// Save replaces the stored collection with the given one.
	Save(ctx context.Context, sessions []*domain.ChatSession) error
	Close() error
}
