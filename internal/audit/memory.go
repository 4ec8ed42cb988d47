package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryLogger keeps audit entries in memory.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLogger constructs an in-memory audit log.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log appends an entry.
func (l *MemoryLogger) Log(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, prepare(entry))
	return nil
}

// List mirrors Repository.List.
func (l *MemoryLogger) List(_ context.Context, filter Filter) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, entry := range l.entries {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.EntityRef != "" && entry.EntityRef != filter.EntityRef {
			continue
		}
		if !filter.Since.IsZero() && entry.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

// Entries returns every entry in insertion order.
func (l *MemoryLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
