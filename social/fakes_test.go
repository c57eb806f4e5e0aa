package social

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/auth"
	"github.com/openpix/openpix/blob"
	"github.com/openpix/openpix/graph"
)

// eventLog records cross-fake call ordering so tests can assert the saga's
// step sequence.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) indexOf(e string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, ev := range l.events {
		if ev == e {
			return i
		}
	}
	return -1
}

// record builds a driver record from alternating key/value pairs.
func record(kv ...any) *db.Record {
	rec := &db.Record{}
	for i := 0; i+1 < len(kv); i += 2 {
		rec.Keys = append(rec.Keys, kv[i].(string))
		rec.Values = append(rec.Values, kv[i+1])
	}
	return rec
}

// fakeGraph is a scriptable TxManager+Runner. Script receives each executed
// cypher and its params; queries it returns nil records for succeed empty.
type fakeGraph struct {
	log        *eventLog
	script     func(cypher string, params map[string]any) ([]*db.Record, error)
	inTx       bool
	begun      int
	committed  int
	rolledBack int
	failBegin  error
	failCommit error
	queries    []string
}

func (f *fakeGraph) Begin(ctx context.Context) error {
	if f.failBegin != nil {
		return f.failBegin
	}
	f.begun++
	f.inTx = true
	if f.log != nil {
		f.log.add("begin")
	}
	return nil
}

func (f *fakeGraph) Commit(ctx context.Context) error {
	if !f.inTx {
		return openpix.Error{Code: openpix.NoTransactionInProgress, Err: fmt.Errorf("no transaction")}
	}
	f.inTx = false
	if f.failCommit != nil {
		return f.failCommit
	}
	f.committed++
	if f.log != nil {
		f.log.add("commit")
	}
	return nil
}

func (f *fakeGraph) Rollback(ctx context.Context) error {
	if f.inTx {
		f.rolledBack++
		f.inTx = false
		if f.log != nil {
			f.log.add("rollback")
		}
	}
	return nil
}

func (f *fakeGraph) Graph(ctx context.Context, useTransaction bool) (graph.Runner, error) {
	if useTransaction && !f.inTx {
		return nil, openpix.Error{Code: openpix.NoTransactionInProgress, Err: fmt.Errorf("no transaction")}
	}
	return f, nil
}

func (f *fakeGraph) Run(ctx context.Context, cypher string, params map[string]any) ([]*db.Record, error) {
	f.queries = append(f.queries, cypher)
	if f.script == nil {
		return nil, nil
	}
	return f.script(cypher, params)
}

func (f *fakeGraph) ran(fragment string) bool {
	for _, q := range f.queries {
		if strings.Contains(q, fragment) {
			return true
		}
	}
	return false
}

// fakeIndexer is a map-backed openpix.Indexer with per-operation fault
// switches. Delete is idempotent like the real client.
type fakeIndexer struct {
	log       *eventLog
	docs      map[string]any
	nextID    int
	inserts   []string
	updates   []string
	deletes   []string
	insertErr error
	updateErr error
	deleteErr error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{docs: make(map[string]any)}
}

func (f *fakeIndexer) Insert(ctx context.Context, doc any) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.nextID++
	id := fmt.Sprintf("doc-%d", f.nextID)
	f.docs[id] = doc
	f.inserts = append(f.inserts, id)
	if f.log != nil {
		f.log.add("index.insert")
	}
	return id, nil
}

func (f *fakeIndexer) Update(ctx context.Context, id string, partial any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.docs[id] = partial
	f.updates = append(f.updates, id)
	if f.log != nil {
		f.log.add("index.update")
	}
	return nil
}

func (f *fakeIndexer) UpdateScript(ctx context.Context, id string, script string, params map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, id)
	if f.log != nil {
		f.log.add("index.updateScript")
	}
	return nil
}

func (f *fakeIndexer) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	// Absent documents delete successfully.
	delete(f.docs, id)
	f.deletes = append(f.deletes, id)
	if f.log != nil {
		f.log.add("index.delete")
	}
	return nil
}

func (f *fakeIndexer) Search(ctx context.Context, query map[string]any, size int) ([]openpix.Hit, error) {
	return nil, nil
}

func (f *fakeIndexer) SearchAfter(ctx context.Context, query map[string]any, after []any, size int) (openpix.Page, error) {
	return openpix.Page{Final: true}, nil
}

func (f *fakeIndexer) Count(ctx context.Context, query map[string]any) (int64, error) {
	return int64(len(f.docs)), nil
}

// fakeBlob uploads into memory. When failErr is set, failOn selects which
// upload fails (0 fails all).
type fakeBlob struct {
	uploads int
	failErr error
	failOn  int
	removed []string
}

func (f *fakeBlob) Upload(ctx context.Context, file io.Reader, key, ownerID, ext string) (blob.UploadResult, error) {
	if f.failErr != nil && (f.failOn == 0 || f.uploads+1 == f.failOn) {
		return blob.UploadResult{}, f.failErr
	}
	f.uploads++
	return blob.UploadResult{
		Tag: fmt.Sprintf("etag-%d", f.uploads),
		URL: fmt.Sprintf("https://blobs.test/%s/%s.%s", ownerID, key, ext),
	}, nil
}

func (f *fakeBlob) Remove(ctx context.Context, url string) error {
	f.removed = append(f.removed, url)
	return nil
}

// fakeAuth accepts token "valid:<subject>" for that subject only.
type fakeAuth struct{}

func (fakeAuth) VerifyJWT(token string, subjectID string) (*auth.Claims, error) {
	if token == "valid:"+subjectID {
		return &auth.Claims{}, nil
	}
	return nil, nil
}
