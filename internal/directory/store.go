package directory

import (
	"context"
	"time"

	"github.com/alphadose/haxmap"
)

// Entry is the cached model list of one provider.
type Entry struct {
	ProviderID string    `json:"provider_id"`
	Models     []string  `json:"models"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Store holds one entry per provider. Put replaces, never merges. Concurrent
// Puts for the same provider are last-write-wins.
type Store interface {
	Get(ctx context.Context, providerID string) (Entry, bool, error)
	Put(ctx context.Context, entry Entry) error
}

// MemoryStore is a process-local Store. Keys are independent, so refreshes of
// different providers never contend.
type MemoryStore struct {
	entries *haxmap.Map[string, Entry]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: haxmap.New[string, Entry]()}
}

func (s *MemoryStore) Get(_ context.Context, providerID string) (Entry, bool, error) {
	e, ok := s.entries.Get(providerID)
	return e, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.entries.Set(entry.ProviderID, entry)
	return nil
}
