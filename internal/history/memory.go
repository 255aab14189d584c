package history

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process history store. Each conversation expires a fixed
// TTL after its last append; expired entries are pruned lazily on access.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[Key]*memoryEntry
}

type memoryEntry struct {
	turns   []Turn
	expires time.Time
}

// NewMemory builds a store whose conversations live for ttl after the last
// append.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		entries: map[Key]*memoryEntry{},
	}
}

// Turns returns a copy of the conversation, empty when absent or expired.
func (m *Memory) Turns(ctx context.Context, key Key) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()

	e, ok := m.entries[key]
	if !ok {
		return []Turn{}, nil
	}
	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out, nil
}

// Append adds turns and pushes the conversation's expiry out by the TTL.
func (m *Memory) Append(ctx context.Context, key Key, turns ...Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()

	e, ok := m.entries[key]
	if !ok {
		e = &memoryEntry{}
		m.entries[key] = e
	}
	e.turns = append(e.turns, turns...)
	e.expires = m.now().Add(m.ttl)
	return nil
}

// Drop discards a conversation.
func (m *Memory) Drop(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// prune removes expired conversations. Caller holds the lock.
func (m *Memory) prune() {
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
}
