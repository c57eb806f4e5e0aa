// Package openpix contains the write-coordination core of the openpix social
// network backend. Mutating operations must keep three stores in agreement: a
// transactional graph store (vertices and edges for users, posts, follows,
// likes, comments), a denormalized search index (queryable documents), and a
// best-effort cache in front of those documents. None of the stores spans the
// others in one transaction, so the application coordinates them saga-style:
// open a graph transaction, perform cross-store side effects, then commit or
// compensate.
//
// The root package holds the shared types and store contracts; the graph,
// search and cache subpackages implement them, and the social subpackage hosts
// the per-operation coordination logic.
package openpix

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is the best-effort cache contract. Implementations must degrade rather
// than fail: a Get that cannot reach the cache reports a miss, and Set/Delete
// failures are logged and swallowed. Cache contents are never authoritative.
type Cache interface {
	// Get fetches the value stored under key into target. It returns false on
	// a miss or on any transport failure; a non-nil error indicates caller
	// misuse (nil target), not cache unavailability.
	Get(ctx context.Context, key string, target any) (bool, error)
	// Set stores value under key with the given expiration. Zero expiration
	// applies the client's default TTL. Failures are logged, never returned.
	Set(ctx context.Context, key string, value any, expiration time.Duration)
	// Delete removes the given keys. Failures are logged, never returned.
	Delete(ctx context.Context, keys ...string)
	// AddToSet adds member to the set stored under key. Best effort.
	AddToSet(ctx context.Context, key string, members ...string)
	// Expire sets a TTL on key. Best effort.
	Expire(ctx context.Context, key string, ttl time.Duration)
	// Members lists the set stored under key; empty on any failure.
	Members(ctx context.Context, key string) []string
	// Ping tests connectivity.
	Ping(ctx context.Context) error
}

// Hit is one search-index result.
type Hit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
	// Sort carries the hit's sort values, fed back verbatim as the keyset
	// pagination cursor.
	Sort []any `json:"sort"`
}

// Page is one page of keyset-paginated results.
type Page struct {
	Hits []Hit
	// Cursor is the sort tuple of the last hit, or nil when the page is empty.
	Cursor []any
	// Final is true when fewer hits than requested were returned, i.e. there
	// is no further page.
	Final bool
}

// Indexer is the search-index contract. All operations are wrapped by the
// implementation's retry policy; Delete treats an absent document as success.
type Indexer interface {
	// Insert adds a document and returns the engine-assigned id. The caller
	// owns storing that id back into the graph as the join key.
	Insert(ctx context.Context, doc any) (string, error)
	// Update applies a partial document to id.
	Update(ctx context.Context, id string, partial any) error
	// UpdateScript runs a scripted update against id.
	UpdateScript(ctx context.Context, id string, script string, params map[string]any) error
	// Delete removes the document. An already-absent document is success.
	Delete(ctx context.Context, id string) error
	// Search runs query and returns up to size hits.
	Search(ctx context.Context, query map[string]any, size int) ([]Hit, error)
	// SearchAfter runs query sorted by (timestamp desc, id asc), resuming
	// after the given cursor when non-nil.
	SearchAfter(ctx context.Context, query map[string]any, after []any, size int) (Page, error)
	// Count returns the number of documents matching query.
	Count(ctx context.Context, query map[string]any) (int64, error)
}

// Telemetry receives operational counters and timings. Implementations must
// never fail the caller; a misbehaving sink is the sink's problem.
type Telemetry interface {
	Increment(ctx context.Context, name string)
	Observe(ctx context.Context, name string, d time.Duration)
}

// NopTelemetry discards everything.
type NopTelemetry struct{}

func (NopTelemetry) Increment(context.Context, string) {}

func (NopTelemetry) Observe(context.Context, string, time.Duration) {}
