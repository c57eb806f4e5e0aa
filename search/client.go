// Package search wraps all search-engine operations behind a uniform retry
// policy. Mutations here are safe to retry: delete is idempotent (an absent
// document counts as success) and insert/update are overwrite-safe once keyed
// by document id. The caller of Insert owns writing the engine-assigned id
// back into the graph as the join key.
package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/encoding"
)

// Options holds the search engine connection settings.
type Options struct {
	// Addresses lists the engine endpoints.
	Addresses []string
	Username  string
	Password  string
	// Index all operations target.
	Index string
	// Retry is the backoff ladder applied to every call.
	Retry openpix.RetryPolicy
	// Transport overrides the HTTP transport; tests install a canned one.
	Transport http.RoundTripper
	// Cache, when set, fronts the suggestion path (cache-aside).
	Cache openpix.Cache
}

// DefaultOptions.
func DefaultOptions() Options {
	return Options{
		Addresses: []string{"http://localhost:9200"},
		Index:     "openpix",
		Retry:     openpix.DefaultRetryPolicy(),
	}
}

// Client is the resilient search-index client.
type Client struct {
	es     *elasticsearch.Client
	index  string
	policy openpix.RetryPolicy
	cache  openpix.Cache
}

var _ openpix.Indexer = (*Client)(nil)

// NewClient builds a Client from options. A single Client instance is meant to
// be reused across requests; it holds no per-request connection state.
func NewClient(options Options) (*Client, error) {
	if options.Index == "" {
		options.Index = DefaultOptions().Index
	}
	if options.Retry.MaxRetries == 0 && options.Retry.BaseWait == 0 {
		options.Retry = openpix.DefaultRetryPolicy()
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: options.Addresses,
		Username:  options.Username,
		Password:  options.Password,
		Transport: options.Transport,
		// This client owns the retry policy; the transport must not stack
		// another one underneath it.
		DisableRetry: true,
	})
	if err != nil {
		return nil, err
	}
	return &Client{es: es, index: options.Index, policy: options.Retry, cache: options.Cache}, nil
}

// statusError is a non-2xx engine response. Request-shaped statuses are
// permanent: retrying a 400 buys nothing.
type statusError struct {
	status int
	body   string
}

func (e statusError) Error() string {
	return fmt.Sprintf("search engine returned %d: %s", e.status, e.body)
}

func (e statusError) Permanent() bool {
	return e.status >= 400 && e.status < 500 && e.status != http.StatusTooManyRequests
}

// readError drains res and produces the statusError for it.
func readError(res *esapi.Response) error {
	ba, _ := io.ReadAll(res.Body)
	return statusError{status: res.StatusCode, body: string(ba)}
}

// Insert adds doc to the index and returns the engine-assigned document id.
func (c *Client) Insert(ctx context.Context, doc any) (string, error) {
	ba, err := encoding.DefaultMarshaler.Marshal(doc)
	if err != nil {
		return "", err
	}
	var id string
	err = openpix.Retry(ctx, c.policy, "index insert", func(ctx context.Context) error {
		res, err := c.es.Index(c.index, bytes.NewReader(ba), c.es.Index.WithContext(ctx))
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return readError(res)
		}
		var out struct {
			ID string `json:"_id"`
		}
		if err := decodeBody(res.Body, &out); err != nil {
			return err
		}
		id = out.ID
		return nil
	}, nil)
	return id, err
}

// Update applies a partial document to id.
func (c *Client) Update(ctx context.Context, id string, partial any) error {
	return c.update(ctx, id, map[string]any{"doc": partial})
}

// UpdateScript runs a scripted update against id, used for the denormalized
// like/comment counters on post documents.
func (c *Client) UpdateScript(ctx context.Context, id string, script string, params map[string]any) error {
	return c.update(ctx, id, map[string]any{
		"script": map[string]any{"source": script, "params": params},
	})
}

func (c *Client) update(ctx context.Context, id string, body map[string]any) error {
	ba, err := encoding.DefaultMarshaler.Marshal(body)
	if err != nil {
		return err
	}
	return openpix.Retry(ctx, c.policy, "index update", func(ctx context.Context) error {
		res, err := c.es.Update(c.index, id, bytes.NewReader(ba), c.es.Update.WithContext(ctx))
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return readError(res)
		}
		io.Copy(io.Discard, res.Body)
		return nil
	}, nil)
}

// Delete removes the document under id. A document that is already absent (or
// was never created) is a successful terminal state, not a fault.
func (c *Client) Delete(ctx context.Context, id string) error {
	return openpix.Retry(ctx, c.policy, "index delete", func(ctx context.Context) error {
		res, err := c.es.Delete(c.index, id, c.es.Delete.WithContext(ctx))
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode == http.StatusNotFound {
			io.Copy(io.Discard, res.Body)
			return nil
		}
		if res.IsError() {
			return readError(res)
		}
		io.Copy(io.Discard, res.Body)
		return nil
	}, nil)
}

// searchResponse is the engine's search envelope.
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []openpix.Hit `json:"hits"`
	} `json:"hits"`
}

// Search runs query and returns up to size hits.
func (c *Client) Search(ctx context.Context, query map[string]any, size int) ([]openpix.Hit, error) {
	out, err := c.search(ctx, map[string]any{"query": query, "size": size})
	if err != nil {
		return nil, err
	}
	return out.Hits.Hits, nil
}

// SearchAfter runs query with the composite sort (timestamp desc, postId asc),
// resuming after the cursor when non-nil. The page is final when fewer hits
// than requested came back.
func (c *Client) SearchAfter(ctx context.Context, query map[string]any, after []any, size int) (openpix.Page, error) {
	body := PaginatedBody(query, after, size)
	out, err := c.search(ctx, body)
	if err != nil {
		return openpix.Page{}, err
	}
	page := openpix.Page{
		Hits:  out.Hits.Hits,
		Final: len(out.Hits.Hits) < size,
	}
	if n := len(out.Hits.Hits); n > 0 {
		page.Cursor = out.Hits.Hits[n-1].Sort
	}
	return page, nil
}

func (c *Client) search(ctx context.Context, body map[string]any) (searchResponse, error) {
	ba, err := encoding.DefaultMarshaler.Marshal(body)
	if err != nil {
		return searchResponse{}, err
	}
	var out searchResponse
	err = openpix.Retry(ctx, c.policy, "index search", func(ctx context.Context) error {
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
		out = searchResponse{}
		return decodeBody(res.Body, &out)
	}, nil)
	return out, err
}

// Count returns the number of documents matching query.
func (c *Client) Count(ctx context.Context, query map[string]any) (int64, error) {
	ba, err := encoding.DefaultMarshaler.Marshal(map[string]any{"query": query})
	if err != nil {
		return 0, err
	}
	var count int64
	err = openpix.Retry(ctx, c.policy, "index count", func(ctx context.Context) error {
		res, err := c.es.Count(
			c.es.Count.WithContext(ctx),
			c.es.Count.WithIndex(c.index),
			c.es.Count.WithBody(bytes.NewReader(ba)),
		)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return readError(res)
		}
		var out struct {
			Count int64 `json:"count"`
		}
		if err := decodeBody(res.Body, &out); err != nil {
			return err
		}
		count = out.Count
		return nil
	}, nil)
	return count, err
}

func decodeBody(r io.Reader, target any) error {
	ba, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return encoding.DefaultMarshaler.Unmarshal(ba, target)
}
