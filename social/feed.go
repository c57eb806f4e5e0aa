package social

import (
	"context"
	"encoding/json"

	"github.com/openpix/openpix/encoding"
	"github.com/openpix/openpix/search"
)

// FeedPage is one page of post documents with the cursor for the next page.
type FeedPage struct {
	Posts  []PostDoc `json:"posts"`
	Cursor []any     `json:"cursor,omitempty"`
	Final  bool      `json:"final"`
}

// SearchPosts pages through posts matching text with keyset pagination: pass
// the cursor of the previous page (nil for the first) and stop when Final.
func (s *Service) SearchPosts(ctx context.Context, text string, exact bool, after []any, size int) (FeedPage, error) {
	return s.feedPage(ctx, search.FullText(text, exact), after, size)
}

// SearchHashtag pages through posts carrying the exact (normalized) hashtag.
func (s *Service) SearchHashtag(ctx context.Context, tag string, after []any, size int) (FeedPage, error) {
	return s.feedPage(ctx, search.Hashtag(tag), after, size)
}

func (s *Service) feedPage(ctx context.Context, query map[string]any, after []any, size int) (FeedPage, error) {
	page, err := s.index.SearchAfter(ctx, query, after, size)
	if err != nil {
		return FeedPage{}, translate("searchPosts", indexFailure(err))
	}
	posts := make([]PostDoc, 0, len(page.Hits))
	for _, hit := range page.Hits {
		var doc PostDoc
		if err := unmarshalHit(hit.Source, &doc); err != nil {
			return FeedPage{}, err
		}
		posts = append(posts, doc)
	}
	return FeedPage{Posts: posts, Cursor: page.Cursor, Final: page.Final}, nil
}

// CountPosts returns the number of posts carrying the hashtag.
func (s *Service) CountPosts(ctx context.Context, tag string) (int64, error) {
	n, err := s.index.Count(ctx, search.Hashtag(tag))
	if err != nil {
		return 0, translate("countPosts", indexFailure(err))
	}
	return n, nil
}

func unmarshalHit(source json.RawMessage, target any) error {
	return encoding.DefaultMarshaler.Unmarshal(source, target)
}
