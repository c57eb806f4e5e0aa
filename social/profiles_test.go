package social

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/cache"
)

func profileScript(tokenOK bool) func(string, map[string]any) ([]*db.Record, error) {
	return func(cypher string, params map[string]any) ([]*db.Record, error) {
		switch {
		case strings.Contains(cypher, "RETURN u"):
			node := neo4j.Node{Props: map[string]any{"id": "u1", "profileId": "prof-1"}}
			return []*db.Record{record("u", node)}, nil
		case strings.Contains(cypher, "ResetToken"):
			n := int64(0)
			if tokenOK {
				n = 1
			}
			return []*db.Record{record("n", n)}, nil
		}
		return nil, nil
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	g.script = profileScript(true)
	idx := newFakeIndexer()
	mem := cache.NewInMemory()
	s := NewService(Deps{Graph: g, Index: idx, Cache: mem, Auth: fakeAuth{}})

	err := s.UpdateProfile(ctx, UpdateProfileRequest{
		Token: "valid:u1", UserID: "u1", UserName: "ada",
		Bio: "weaving #looms again",
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if len(idx.updates) != 1 || idx.updates[0] != "prof-1" {
		t.Errorf("updates = %v, want [prof-1]", idx.updates)
	}
	if !g.ran("SET u.userName") || g.committed != 1 {
		t.Errorf("vertex update not committed: committed=%d", g.committed)
	}
	if g.ran("passwordHash") {
		t.Error("password touched without a password change")
	}
	var cached ProfileDoc
	if found, _ := mem.Get(ctx, "prof-1", &cached); !found || cached.UserName != "ada" {
		t.Errorf("cached profile = %+v, want the merged edit", cached)
	}
}

func TestUpdateProfilePasswordChange(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	g.script = profileScript(true)
	s := NewService(Deps{Graph: g, Index: newFakeIndexer(), Cache: cache.NewInMemory(), Auth: fakeAuth{}})

	err := s.UpdateProfile(ctx, UpdateProfileRequest{
		Token: "valid:u1", UserID: "u1", UserName: "ada",
		NewPasswordHash: "x'newhash", ResetToken: "tok-1",
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if !g.ran("DELETE t") || !g.ran("SET u.passwordHash") {
		t.Error("token consumption or password write missing")
	}
}

func TestUpdateProfileBadResetToken(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	g.script = profileScript(false)
	s := NewService(Deps{Graph: g, Index: newFakeIndexer(), Cache: cache.NewInMemory(), Auth: fakeAuth{}})

	err := s.UpdateProfile(ctx, UpdateProfileRequest{
		Token: "valid:u1", UserID: "u1", UserName: "ada",
		NewPasswordHash: "x'newhash", ResetToken: "stale",
	})
	if openpix.CodeOf(err) != openpix.ValidationFailure {
		t.Fatalf("error = %v, want ValidationFailure", err)
	}
	if g.ran("SET u.passwordHash") {
		t.Error("password written despite a stale token")
	}
	if g.rolledBack != 1 {
		t.Errorf("rolledBack = %d, want 1", g.rolledBack)
	}
}

func TestUpdateProfilePasswordWithoutToken(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	s := NewService(Deps{Graph: g, Index: newFakeIndexer(), Cache: cache.NewInMemory(), Auth: fakeAuth{}})

	err := s.UpdateProfile(ctx, UpdateProfileRequest{
		Token: "valid:u1", UserID: "u1", UserName: "ada", NewPasswordHash: "x",
	})
	if openpix.CodeOf(err) != openpix.ValidationFailure {
		t.Fatalf("error = %v, want ValidationFailure", err)
	}
	if len(g.queries) != 0 {
		t.Errorf("graph touched: %v", g.queries)
	}
}

// searchingIndexer scripts the read path the map-backed fake stubs out.
type searchingIndexer struct {
	*fakeIndexer
	hits     []openpix.Hit
	searches int
}

func (f *searchingIndexer) Search(ctx context.Context, query map[string]any, size int) ([]openpix.Hit, error) {
	f.searches++
	return f.hits, nil
}

func TestGetProfileCacheAside(t *testing.T) {
	ctx := context.Background()
	source, _ := json.Marshal(ProfileDoc{UserID: "u1", UserName: "ada"})
	idx := &searchingIndexer{
		fakeIndexer: newFakeIndexer(),
		hits:        []openpix.Hit{{ID: "prof-1", Source: source}},
	}
	mem := cache.NewInMemory()
	s := NewService(Deps{Graph: &fakeGraph{}, Index: idx, Cache: mem})

	doc, err := s.GetProfile(ctx, "prof-1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if doc.UserName != "ada" || idx.searches != 1 {
		t.Fatalf("doc=%+v searches=%d", doc, idx.searches)
	}
	if !mem.Has("prof-1") {
		t.Fatal("miss did not write back to the cache")
	}

	// Second read is served from the cache.
	if _, err := s.GetProfile(ctx, "prof-1"); err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
	if idx.searches != 1 {
		t.Errorf("searches = %d after cached read, want 1", idx.searches)
	}
}

func TestGetProfileMissing(t *testing.T) {
	ctx := context.Background()
	idx := &searchingIndexer{fakeIndexer: newFakeIndexer()}
	s := NewService(Deps{Graph: &fakeGraph{}, Index: idx, Cache: cache.NewInMemory()})

	_, err := s.GetProfile(ctx, "nope")
	if openpix.CodeOf(err) != openpix.ValidationFailure {
		t.Fatalf("error = %v, want ValidationFailure", err)
	}
}
