package cache

import (
	"context"
	"sync"
	"time"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/encoding"
)

// InMemory is a map-backed openpix.Cache for tests and prototyping. It honors
// the same degrade-to-miss contract as the Redis client and can be told to
// fail every write, which lets saga tests assert that cache failures never
// change a mutation's outcome.
type InMemory struct {
	mu      sync.Mutex
	lookup  map[string][]byte
	sets    map[string]map[string]struct{}
	FailAll bool
	// SetCalls counts Set invocations, failed ones included.
	SetCalls int
}

// NewInMemory returns an empty in-memory cache.
func NewInMemory() *InMemory {
	return &InMemory{
		lookup: make(map[string][]byte),
		sets:   make(map[string]map[string]struct{}),
	}
}

var _ openpix.Cache = (*InMemory)(nil)

func (m *InMemory) Get(ctx context.Context, key string, target any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return false, nil
	}
	ba, ok := m.lookup[key]
	if !ok {
		return false, nil
	}
	if err := encoding.DefaultMarshaler.Unmarshal(ba, target); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *InMemory) Set(ctx context.Context, key string, value any, expiration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.FailAll || expiration < 0 {
		return
	}
	ba, err := encoding.DefaultMarshaler.Marshal(value)
	if err != nil {
		return
	}
	m.lookup[key] = ba
}

func (m *InMemory) Delete(ctx context.Context, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return
	}
	for _, k := range keys {
		delete(m.lookup, k)
	}
}

func (m *InMemory) AddToSet(ctx context.Context, key string, members ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return
	}
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
}

func (m *InMemory) Expire(ctx context.Context, key string, ttl time.Duration) {}

func (m *InMemory) Members(ctx context.Context, key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return nil
	}
	out := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		out = append(out, member)
	}
	return out
}

func (m *InMemory) Ping(ctx context.Context) error {
	return nil
}

// Has reports whether key is present, for test assertions.
func (m *InMemory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup[key]
	return ok
}
