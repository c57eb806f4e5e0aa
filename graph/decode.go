package graph

import (
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// ErrMalformedRecord is returned when a driver record does not carry the shape
// a query promised. It always indicates a query/decoder mismatch, never user
// input.
var ErrMalformedRecord = errors.New("malformed graph record")

// Vertex is the decoded form of a graph node. ID carries the application id
// property when present, otherwise the driver element id.
type Vertex struct {
	ID     string
	Labels []string
	Props  map[string]any
}

// DecodeVertex extracts the node stored under key from rec.
func DecodeVertex(rec *db.Record, key string) (Vertex, error) {
	v, ok := rec.Get(key)
	if !ok {
		return Vertex{}, fmt.Errorf("%w: missing key %q", ErrMalformedRecord, key)
	}
	node, ok := v.(neo4j.Node)
	if !ok {
		return Vertex{}, fmt.Errorf("%w: key %q holds %T, want node", ErrMalformedRecord, key, v)
	}
	id := node.ElementId
	if s, ok := node.Props["id"].(string); ok && s != "" {
		id = s
	}
	return Vertex{ID: id, Labels: node.Labels, Props: node.Props}, nil
}

// String extracts a string value stored under key from rec.
func String(rec *db.Record, key string) (string, error) {
	v, ok := rec.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: missing key %q", ErrMalformedRecord, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: key %q holds %T, want string", ErrMalformedRecord, key, v)
	}
	return s, nil
}

// Int64 extracts an integer value stored under key from rec.
func Int64(rec *db.Record, key string) (int64, error) {
	v, ok := rec.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: missing key %q", ErrMalformedRecord, key)
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: key %q holds %T, want int64", ErrMalformedRecord, key, v)
	}
	return n, nil
}

// Bool extracts a boolean value stored under key from rec.
func Bool(rec *db.Record, key string) (bool, error) {
	v, ok := rec.Get(key)
	if !ok {
		return false, fmt.Errorf("%w: missing key %q", ErrMalformedRecord, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: key %q holds %T, want bool", ErrMalformedRecord, key, v)
	}
	return b, nil
}

// Strings extracts a list of strings stored under key from rec.
func Strings(rec *db.Record, key string) ([]string, error) {
	v, ok := rec.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrMalformedRecord, key)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: key %q holds %T, want list", ErrMalformedRecord, key, v)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("%w: key %q holds a %T element, want string", ErrMalformedRecord, key, it)
		}
		out = append(out, s)
	}
	return out, nil
}
