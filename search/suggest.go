package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/encoding"
)

// Suggestion is one typeahead entry. Name-like suggestions additionally carry
// the full profile document resolved for them.
type Suggestion struct {
	Text    string          `json:"text"`
	Kind    string          `json:"kind"`
	Profile json.RawMessage `json:"profile,omitempty"`
}

// suggestSource pairs a completion field with the kind label its options get.
type suggestSource struct {
	field string
	kind  string
}

var suggestSources = []suggestSource{
	{field: "userName.suggest", kind: "user"},
	{field: "location.suggest", kind: "location"},
	{field: "hashtags.suggest", kind: "hashtag"},
}

// Suggestions returns up to size typeahead entries for query. The cache is
// consulted first; on a miss the three suggestion sources are fetched
// concurrently, merged, de-duplicated and capped, name-like entries are
// enriched with their profile documents, and the result is written back to
// the cache best-effort.
func (c *Client) Suggestions(ctx context.Context, query string, size int) ([]Suggestion, error) {
	prefix := strings.ToLower(strings.TrimSpace(query))
	key := fmt.Sprintf("suggestions:%s:%d", prefix, size)

	if c.cache != nil {
		var cached []Suggestion
		if found, _ := c.cache.Get(ctx, key, &cached); found {
			return cached, nil
		}
	}

	// The sources are independent enrichment reads, safe to fan out.
	var mu sync.Mutex
	byKind := make(map[string][]string, len(suggestSources))
	eg, egCtx := errgroup.WithContext(ctx)
	for _, src := range suggestSources {
		src := src
		eg.Go(func() error {
			texts, err := c.suggestOne(egCtx, src.field, prefix, size)
			if err != nil {
				return err
			}
			mu.Lock()
			byKind[src.kind] = texts
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	profiles, err := c.profilesFor(ctx, byKind["user"])
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, size)
	seen := make(map[string]bool)
	for _, src := range suggestSources {
		for _, text := range byKind[src.kind] {
			dedupeKey := src.kind + ":" + strings.ToLower(text)
			if seen[dedupeKey] || len(out) >= size {
				continue
			}
			seen[dedupeKey] = true
			out = append(out, Suggestion{Text: text, Kind: src.kind, Profile: profiles[text]})
		}
	}

	if c.cache != nil {
		// Write-back failures are swallowed by the cache contract.
		c.cache.Set(ctx, key, out, 0)
	}
	return out, nil
}

// suggestOne runs a single completion suggester and returns its option texts,
// sorted for stable merging.
func (c *Client) suggestOne(ctx context.Context, field, prefix string, size int) ([]string, error) {
	ba, err := encoding.DefaultMarshaler.Marshal(SuggestBody(field, prefix, size))
	if err != nil {
		return nil, err
	}
	var texts []string
	err = openpix.Retry(ctx, c.policy, "index suggest", func(ctx context.Context) error {
		res, err := c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(c.index),
			c.es.Search.WithBody(bytes.NewReader(ba)),
		)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return readError(res)
		}
		var out struct {
			Suggest struct {
				S []struct {
					Options []struct {
						Text string `json:"text"`
					} `json:"options"`
				} `json:"s"`
			} `json:"suggest"`
		}
		if err := decodeBody(res.Body, &out); err != nil {
			return err
		}
		texts = texts[:0]
		for _, group := range out.Suggest.S {
			for _, opt := range group.Options {
				texts = append(texts, opt.Text)
			}
		}
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	sort.Strings(texts)
	return texts, nil
}

// profilesFor resolves full profile documents for name-like suggestions,
// keyed by userName.
func (c *Client) profilesFor(ctx context.Context, names []string) (map[string]json.RawMessage, error) {
	if len(names) == 0 {
		return nil, nil
	}
	hits, err := c.Search(ctx, ByUserName(names...), len(names))
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(hits))
	for _, hit := range hits {
		var doc struct {
			UserName string `json:"userName"`
		}
		if err := encoding.DefaultMarshaler.Unmarshal(hit.Source, &doc); err != nil {
			continue
		}
		out[doc.UserName] = hit.Source
	}
	return out, nil
}
