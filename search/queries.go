package search

import (
	"strings"
)

// Boost weights for the full-text should clauses. Username and hashtag
// matches rank above body text.
const (
	boostUserName = 3.0
	boostHashtag  = 2.0
	boostCaption  = 1.0
)

// FullText builds a multi-field should query over caption, location, media
// alt text and username. When exact is false, fuzzy matching is enabled on
// the text fields.
func FullText(text string, exact bool) map[string]any {
	match := func(field string, boost float64) map[string]any {
		m := map[string]any{"query": text, "boost": boost}
		if !exact {
			m["fuzziness"] = "AUTO"
		}
		return map[string]any{"match": map[string]any{field: m}}
	}
	should := []any{
		match("caption", boostCaption),
		match("location", boostCaption),
		match("userName", boostUserName),
		map[string]any{"nested": map[string]any{
			"path":  "media",
			"query": match("media.altText", boostCaption),
		}},
		map[string]any{"term": map[string]any{
			"hashtags": map[string]any{
				"value": NormalizeHashtag(text),
				"boost": boostHashtag,
			},
		}},
	}
	return map[string]any{"bool": map[string]any{
		"should":               should,
		"minimum_should_match": 1,
	}}
}

// Hashtag builds an exact term match on the normalized hashtag field.
func Hashtag(tag string) map[string]any {
	return map[string]any{"term": map[string]any{
		"hashtags": NormalizeHashtag(tag),
	}}
}

// ByUserName builds an exact term match on userName, used to resolve full
// profile documents for name-like suggestions.
func ByUserName(names ...string) map[string]any {
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = n
	}
	return map[string]any{"terms": map[string]any{"userName": values}}
}

// MatchAll matches every document.
func MatchAll() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// NormalizeHashtag lower-cases tag and strips a leading '#'.
func NormalizeHashtag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

// PaginatedBody assembles a keyset-paginated request body: composite sort
// (timestamp desc, postId asc) with the previous page's sort tuple supplied
// verbatim as search_after.
func PaginatedBody(query map[string]any, after []any, size int) map[string]any {
	body := map[string]any{
		"query": query,
		"size":  size,
		"sort": []any{
			map[string]any{"timestamp": map[string]any{"order": "desc"}},
			map[string]any{"postId": map[string]any{"order": "asc"}},
		},
	}
	if len(after) > 0 {
		body["search_after"] = after
	}
	return body
}

// SuggestBody builds a prefix-completion request against one suggest field.
// The suggester is always named "s" so responses decode uniformly.
func SuggestBody(field, prefix string, size int) map[string]any {
	return map[string]any{
		"suggest": map[string]any{
			"s": map[string]any{
				"prefix": prefix,
				"completion": map[string]any{
					"field":           field,
					"size":            size,
					"skip_duplicates": true,
				},
			},
		},
	}
}
